package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/joseph-ayodele/extract-tracker/constants"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
	"github.com/joseph-ayodele/extract-tracker/internal/notify"
)

// session binds one job handle to one repeating query loop. Only run touches the ticker.
type session struct {
	id       string
	jobID    string
	querier  Querier
	notifier notify.Notifier
	logger   *slog.Logger
	clock    clockwork.Clock
	interval time.Duration
	onStop   func(*session)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	state     State
	snapshot  *entity.JobSnapshot
	err       error
	observers map[*Poller]struct{}
	finished  bool
}

func (r *Registry) newSession(ctx context.Context, jobID string) *session {
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	id := uuid.NewString()
	return &session{
		id:        id,
		jobID:     jobID,
		querier:   r.querier,
		notifier:  r.notifier,
		logger:    r.logger.With("session_id", id, "job_id", jobID),
		clock:     r.clock,
		interval:  r.interval,
		onStop:    r.remove,
		ctx:       sctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     Idle,
		observers: make(map[*Poller]struct{}),
	}
}

// start enters Polling and launches the query loop.
func (s *session) start() {
	s.apply(Polling, nil, nil, nil)
	s.logger.Info("poller.session.started", "interval_ms", s.interval.Milliseconds())
	go s.run()
}

func (s *session) run() {
	defer s.finish()

	if !s.poll() {
		return
	}
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			if !s.poll() {
				return
			}
		}
	}
}

// poll runs one query and applies its outcome. It returns false when the loop must stop.
func (s *session) poll() bool {
	start := s.clock.Now()
	snap, err := s.querier.Query(s.ctx, s.jobID)
	elapsed := s.clock.Since(start).Milliseconds()

	if s.ctx.Err() != nil {
		s.logger.Debug("poller.result.discarded", "elapsed_ms", elapsed)
		return false
	}
	if err != nil {
		s.logger.Error("poller.query.failed", "elapsed_ms", elapsed, "error", err)
		n := notify.Error(s.jobID, "Error loading job", "Could not retrieve job status. Please try again.")
		s.apply(Errored, nil, &PollError{Kind: RetrievalFailed, Message: retrievalFailedMessage, Err: err}, &n)
		return false
	}

	s.logger.Debug("poller.query", "status", snap.Status, "progress", snap.ProgressPercent(), "elapsed_ms", elapsed)
	switch snap.Status {
	case constants.JobStatusCompleted:
		n := notify.Success(s.jobID, "Processing completed!", "Your data has been successfully processed.")
		s.apply(Completed, &snap, nil, &n)
		return false
	case constants.JobStatusFailed:
		n := notify.Error(s.jobID, "Processing failed", snap.Message)
		s.apply(Failed, &snap, nil, &n)
		return false
	default:
		s.apply(Polling, &snap, nil, nil)
		return true
	}
}

// apply replaces the held snapshot, moves to next and emits n, all only while the session is live.
// A notification is sent only when the state actually changed.
func (s *session) apply(next State, snap *entity.JobSnapshot, err error, n *notify.Notification) bool {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	changed := false
	if next != s.state {
		if !isValidTransition(s.state, next) {
			from := s.state
			s.mu.Unlock()
			s.logger.Warn("poller.transition.rejected", "from", from.String(), "to", next.String())
			return false
		}
		s.state = next
		changed = true
	}
	if snap != nil {
		s.snapshot = snap
	}
	if err != nil {
		s.err = err
	}
	s.broadcastLocked()
	s.mu.Unlock()

	if changed {
		s.logger.Info("poller.transition", "to", next.String())
		if n != nil {
			s.notifier.Notify(context.WithoutCancel(s.ctx), *n)
		}
	}
	return changed
}

func (s *session) view() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *session) viewLocked() View {
	return View{JobID: s.jobID, State: s.state, Snapshot: s.snapshot, Err: s.err}
}

// broadcastLocked offers the latest view to every observer, replacing any unread one.
func (s *session) broadcastLocked() {
	v := s.viewLocked()
	for p := range s.observers {
		offer(p.updates, v)
	}
}

func offer(ch chan View, v View) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// observe registers a new Poller, or returns nil if the session has already stopped.
func (s *session) observe() *Poller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.ctx.Err() != nil {
		return nil
	}
	p := newPoller(s)
	s.observers[p] = struct{}{}
	offer(p.updates, s.viewLocked())
	return p
}

// detach removes p. The last observer leaving stops the session.
func (s *session) detach(p *Poller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.observers[p]; !ok {
		return
	}
	delete(s.observers, p)
	p.release()
	if len(s.observers) == 0 && !s.finished {
		s.logger.Info("poller.session.abandoned")
		s.cancel()
	}
}

func (s *session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
}

func (s *session) finish() {
	s.mu.Lock()
	s.finished = true
	s.cancel()
	for p := range s.observers {
		p.release()
	}
	clear(s.observers)
	state := s.state
	s.mu.Unlock()

	close(s.done)
	s.logger.Info("poller.session.stopped", "state", state.String())
	if s.onStop != nil {
		s.onStop(s)
	}
}
