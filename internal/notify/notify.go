// Package notify delivers transient user notifications (the CLI's equivalent of toasts).
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one transient, user-facing message.
type Notification struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id,omitempty"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// Success builds a success notification.
func Success(jobID, title, description string) Notification {
	return newNotification(KindSuccess, jobID, title, description)
}

// Error builds a failure notification.
func Error(jobID, title, description string) Notification {
	return newNotification(KindError, jobID, title, description)
}

func newNotification(kind Kind, jobID, title, description string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		JobID:       jobID,
		Kind:        kind,
		Title:       title,
		Description: description,
		At:          time.Now().UTC(),
	}
}

// Notifier shows or forwards notifications. Delivery failures are the notifier's concern.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Kind == KindError {
		level = slog.LevelError
	}
	l.logger.Log(ctx, level, n.Title,
		"notification_id", n.ID,
		"job_id", n.JobID,
		"kind", n.Kind,
		"description", n.Description,
	)
}

// Nop drops notifications.
var Nop Notifier = Func(func(context.Context, Notification) {})
