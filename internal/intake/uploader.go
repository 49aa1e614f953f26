package intake

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
	"github.com/joseph-ayodele/extract-tracker/internal/notify"
	"github.com/joseph-ayodele/extract-tracker/internal/progress"
)

const fallbackUploadError = "An unexpected error occurred. Please try again."

// ErrUploadInProgress is returned when Upload is called while another upload is running.
var ErrUploadInProgress = errors.New("upload already in progress")

// Submitter sends one file to the extraction service.
type Submitter interface {
	Submit(ctx context.Context, file entity.CandidateFile) (entity.JobHandle, error)
}

// State is the visible state of an upload. Error persists until the next attempt.
type State struct {
	Uploading bool
	Progress  int
	Error     string
	JobID     entity.JobID
}

type Uploader struct {
	submitter Submitter
	session   *Session
	simulator *progress.Simulator
	notifier  notify.Notifier
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight bool
	state    State
	onChange func(State)
}

type UploaderOption func(*Uploader)

// WithStateListener registers f to receive every state change.
func WithStateListener(f func(State)) UploaderOption {
	return func(u *Uploader) { u.onChange = f }
}

func WithSimulator(s *progress.Simulator) UploaderOption {
	return func(u *Uploader) {
		if s != nil {
			u.simulator = s
		}
	}
}

func WithUploadLogger(logger *slog.Logger) UploaderOption {
	return func(u *Uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func NewUploader(submitter Submitter, session *Session, notifier notify.Notifier, opts ...UploaderOption) *Uploader {
	if session == nil {
		session = NewSession(nil, 0)
	}
	if notifier == nil {
		notifier = notify.Nop
	}
	u := &Uploader{
		submitter: submitter,
		session:   session,
		simulator: progress.NewSimulator(0),
		notifier:  notifier,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload validates file, submits it exactly once and reports the outcome with one notification.
// Invalid files never reach the submitter.
func (u *Uploader) Upload(ctx context.Context, file entity.CandidateFile) (entity.JobHandle, error) {
	u.mu.Lock()
	if u.inFlight {
		u.mu.Unlock()
		return entity.JobHandle{}, ErrUploadInProgress
	}
	u.inFlight = true
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.inFlight = false
		u.mu.Unlock()
	}()

	if err := u.session.Check(file); err != nil {
		u.set(State{Error: err.Error()})
		u.logger.Warn("intake.rejected",
			"file", file.Name,
			"media_type", file.MediaType,
			"size", file.Size,
			"accepted", u.session.AcceptedTypes(),
			"max_mb", u.session.MaxSizeMB(),
			"error", err,
		)
		u.notifier.Notify(ctx, notify.Error("", "Invalid file", err.Error()))
		return entity.JobHandle{}, err
	}

	u.set(State{Uploading: true})
	start := time.Now()
	u.logger.Info("intake.upload.start", "file", file.Name, "size", file.Size)

	ticker := u.simulator.Start(func(p int) {
		u.update(func(s *State) {
			if s.Uploading {
				s.Progress = p
			}
		})
	})
	handle, err := u.submitter.Submit(ctx, file)
	ticker.Stop()

	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		msg := errorMessage(err)
		u.set(State{Error: msg})
		u.logger.Error("intake.upload.failed", "file", file.Name, "elapsed_ms", elapsed, "error", err)
		u.notifier.Notify(ctx, notify.Error("", "Upload failed", msg))
		return entity.JobHandle{}, err
	}

	u.set(State{Progress: progress.Complete, JobID: handle.JobID})
	u.session.Remove()
	u.logger.Info("intake.upload.done", "file", file.Name, "job_id", handle.JobID, "elapsed_ms", elapsed)
	u.notifier.Notify(ctx, notify.Success(handle.JobID.String(), "File uploaded successfully!", "Your file is now being processed."))
	return handle, nil
}

// State returns a copy of the current upload state.
func (u *Uploader) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

func (u *Uploader) set(s State) {
	u.update(func(cur *State) { *cur = s })
}

func (u *Uploader) update(f func(*State)) {
	u.mu.Lock()
	f(&u.state)
	snapshot := u.state
	listener := u.onChange
	u.mu.Unlock()
	if listener != nil {
		listener(snapshot)
	}
}

func errorMessage(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallbackUploadError
}
