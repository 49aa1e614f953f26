// Package poller tracks server-side extraction jobs until they reach a terminal state.
//
// A Registry owns at most one session per job handle. Each session runs its queries
// sequentially on a single goroutine and emits exactly one notification when it ends.
package poller

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joseph-ayodele/extract-tracker/internal/entity"
	"github.com/joseph-ayodele/extract-tracker/internal/notify"
)

// DefaultInterval is the delay between status queries.
const DefaultInterval = 3 * time.Second

// Querier fetches the current snapshot of a job.
type Querier interface {
	Query(ctx context.Context, jobID string) (entity.JobSnapshot, error)
}

type Registry struct {
	querier  Querier
	notifier notify.Notifier
	logger   *slog.Logger
	clock    clockwork.Clock
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

type Option func(*Registry)

func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(querier Querier, notifier notify.Notifier, opts ...Option) *Registry {
	if notifier == nil {
		notifier = notify.Nop
	}
	r := &Registry{
		querier:  querier,
		notifier: notifier,
		logger:   slog.Default(),
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach observes jobID, joining the running session for it or starting a new one.
// Cancelling ctx has the same effect as closing the returned Poller.
func (r *Registry) Attach(ctx context.Context, jobID string) *Poller {
	if jobID == "" {
		n := notify.Error("", "Error loading job", missingHandleMessage)
		return r.stillborn(ctx, jobID, MissingHandle, missingHandleMessage, &n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.stillborn(ctx, jobID, RegistryClosed, registryClosedMessage, nil)
	}
	if s, ok := r.sessions[jobID]; ok {
		if p := s.observe(); p != nil {
			s.logger.Debug("poller.session.joined")
			return p.bindContext(ctx)
		}
	}

	s := r.newSession(ctx, jobID)
	p := s.observe()
	r.sessions[jobID] = s
	s.start()
	return p.bindContext(ctx)
}

// stillborn returns a Poller on a session that ends in Errored without querying.
func (r *Registry) stillborn(ctx context.Context, jobID string, kind ErrorKind, msg string, n *notify.Notification) *Poller {
	s := r.newSession(ctx, jobID)
	s.onStop = nil
	p := s.observe()
	s.logger.Warn("poller.attach.rejected", "reason", string(kind))
	s.apply(Errored, nil, &PollError{Kind: kind, Message: msg}, n)
	s.finish()
	return p
}

// Active returns the job handles that currently have a running session.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.sessions))
}

// Shutdown stops every session and waits for their loops to exit.
// Attach calls after Shutdown return an Errored Poller.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := slices.Collect(maps.Values(r.sessions))
	r.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
	for _, s := range sessions {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.logger.Info("poller.registry.shutdown", "sessions", len(sessions))
	return nil
}

func (r *Registry) remove(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.jobID] == s {
		delete(r.sessions, s.jobID)
	}
}
