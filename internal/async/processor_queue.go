package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/core"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// FileProcessor is satisfied by *core.Processor.
type FileProcessor interface {
	ProcessFile(ctx context.Context, req core.Request) (*core.Outcome, error)
}

type ProcessorQueue struct {
	proc    FileProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	// base is cancelled when Shutdown gives up waiting, so in-flight jobs stop polling.
	base   context.Context
	cancel context.CancelFunc
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 30 * time.Minute,
		ch:      make(chan Job, 256),
		base:    base,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(common.WithRequestID(q.base, job.TraceID), q.timeout)
	defer cancel()

	start := time.Now()
	out, err := q.proc.ProcessFile(ctx, core.Request{Path: job.Path, Force: job.Force})
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "trace_id", job.TraceID, "error", err)
		return
	}
	q.logger.Info("processed file successfully",
		"worker_id", workerID,
		"path", job.Path,
		"job_id", out.JobID,
		"deduplicated", out.Deduplicated,
		"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// Enqueue blocks when the queue is full until there is room or ctx ends.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued file for processing", "path", job.Path, "force", job.Force, "trace_id", job.TraceID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. If ctx ends first,
// in-flight jobs are cancelled.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
		q.cancel()
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
		q.cancel()
	}
}
