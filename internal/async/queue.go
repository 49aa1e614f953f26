package async

import (
	"context"
	"time"
)

// Job is one local file waiting to be submitted.
type Job struct {
	Path        string
	Force       bool // submit even if the same content was submitted before
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
