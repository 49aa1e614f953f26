package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/extract-tracker/constants"
	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
	"github.com/joseph-ayodele/extract-tracker/internal/export"
	"github.com/joseph-ayodele/extract-tracker/internal/intake"
	"github.com/joseph-ayodele/extract-tracker/internal/notify"
	"github.com/joseph-ayodele/extract-tracker/internal/poller"
	"github.com/joseph-ayodele/extract-tracker/internal/progress"
	"github.com/joseph-ayodele/extract-tracker/internal/repository"
)

// Processor coordinates intake (validate, upload) then tracking (poll until terminal) for local files.
type Processor struct {
	logger    *slog.Logger
	submitter intake.Submitter
	registry  *poller.Registry
	notifier  notify.Notifier
	simulator *progress.Simulator
	ledger    repository.SubmissionRepository
	exporter  *export.Service
	exportDir string
	accepted  []string
	maxMB     float64
	wait      bool
	onUpload  func(intake.State)
}

type Option func(*Processor)

// WithLedger deduplicates submissions by file content.
func WithLedger(repo repository.SubmissionRepository) Option {
	return func(p *Processor) { p.ledger = repo }
}

// WithExport writes an XLSX workbook into dir for every completed job.
func WithExport(svc *export.Service, dir string) Option {
	return func(p *Processor) {
		p.exporter = svc
		p.exportDir = dir
	}
}

func WithLimits(accepted []string, maxSizeMB float64) Option {
	return func(p *Processor) {
		p.accepted = accepted
		p.maxMB = maxSizeMB
	}
}

func WithSimulator(s *progress.Simulator) Option {
	return func(p *Processor) { p.simulator = s }
}

// WithWait makes ProcessFile track the job until it reaches a terminal state.
func WithWait(wait bool) Option {
	return func(p *Processor) { p.wait = wait }
}

// WithUploadListener receives every upload state change.
func WithUploadListener(f func(intake.State)) Option {
	return func(p *Processor) { p.onUpload = f }
}

func NewProcessor(logger *slog.Logger, submitter intake.Submitter, registry *poller.Registry, notifier notify.Notifier, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Nop
	}
	p := &Processor{
		logger:    logger,
		submitter: submitter,
		registry:  registry,
		notifier:  notifier,
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.accepted) == 0 {
		p.accepted = constants.DefaultAcceptedTypes
	}
	if p.maxMB <= 0 {
		p.maxMB = constants.DefaultMaxUploadMB
	}
	return p
}

// Request names one local file to process.
type Request struct {
	Path  string
	Force bool // submit even if the same content was submitted before
}

// Outcome describes what happened to one file.
type Outcome struct {
	File         entity.CandidateFile
	ContentHash  string
	JobID        entity.JobID
	Deduplicated bool
	View         *poller.View // set when the job was tracked
	ExportPath   string
}

// ProcessFile validates and submits the file at req.Path, at most once per content unless forced,
// then tracks the job when configured to wait.
func (p *Processor) ProcessFile(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	file, err := intake.FromPath(req.Path)
	if err != nil {
		p.logger.Error("processor.intake.failed", "path", req.Path, "error", err)
		return nil, err
	}

	out := &Outcome{File: file}
	// invalid files skip hashing; the uploader rejects and reports them
	if p.ledger != nil && intake.Validate(file, p.accepted, p.maxMB) == nil {
		if out.ContentHash, err = hashFile(file); err != nil {
			return nil, fmt.Errorf("hash file: %w", err)
		}
	}

	if prior, ok, err := p.priorSubmission(ctx, out.ContentHash, req.Force); err != nil {
		return nil, err
	} else if ok {
		p.logger.Info("processor.dedup", "path", file.Path, "hash", out.ContentHash, "job_id", prior.JobID)
		out.JobID = prior.JobID
		out.Deduplicated = true
	} else {
		handle, err := p.upload(ctx, file)
		if err != nil {
			return out, err
		}
		out.JobID = handle.JobID
		p.record(ctx, file, out.ContentHash, handle.JobID)
	}

	ctx = common.WithJobID(ctx, out.JobID.String())
	if p.wait {
		view, path, err := p.track(ctx, out.JobID.String())
		out.View = &view
		out.ExportPath = path
		if err != nil {
			return out, err
		}
	}

	p.logger.Info("processor.file.done",
		"path", file.Path,
		"job_id", out.JobID,
		"deduplicated", out.Deduplicated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Track follows an existing job until it is terminal and exports completed results when configured.
func (p *Processor) Track(ctx context.Context, jobID string) (poller.View, string, error) {
	return p.track(common.WithJobID(ctx, jobID), jobID)
}

func (p *Processor) track(ctx context.Context, jobID string) (poller.View, string, error) {
	pl := p.registry.Attach(ctx, jobID)
	defer pl.Close()

	view, err := poller.Wait(ctx, pl)
	if err != nil {
		p.logger.Error("processor.track.failed", "job_id", jobID, "state", view.State.String(), "error", err)
		return view, "", err
	}
	if view.State != poller.Completed || p.exporter == nil || p.exportDir == "" || view.Snapshot == nil {
		return view, "", nil
	}
	path, err := p.exporter.WriteXLSX(ctx, *view.Snapshot, p.exportDir)
	if err != nil {
		p.logger.Error("processor.export.failed", "job_id", jobID, "error", err)
		return view, "", err
	}
	return view, path, nil
}

func (p *Processor) upload(ctx context.Context, file entity.CandidateFile) (entity.JobHandle, error) {
	opts := []intake.UploaderOption{intake.WithUploadLogger(p.logger), intake.WithSimulator(p.simulator)}
	if p.onUpload != nil {
		opts = append(opts, intake.WithStateListener(p.onUpload))
	}
	u := intake.NewUploader(p.submitter, intake.NewSession(p.accepted, p.maxMB), p.notifier, opts...)
	return u.Upload(ctx, file)
}

func (p *Processor) priorSubmission(ctx context.Context, hash string, force bool) (*entity.Submission, bool, error) {
	if p.ledger == nil || force || hash == "" {
		return nil, false, nil
	}
	prior, err := p.ledger.GetByHash(ctx, hash)
	if errors.Is(err, common.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return prior, true, nil
}

// record failures are logged only: the job already exists server-side.
func (p *Processor) record(ctx context.Context, file entity.CandidateFile, hash string, jobID entity.JobID) {
	if p.ledger == nil || hash == "" {
		return
	}
	_, existed, err := p.ledger.Record(ctx, entity.Submission{
		ContentHash: hash,
		FileName:    file.Name,
		SourcePath:  file.Path,
		JobID:       jobID,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		p.logger.Error("processor.ledger.record_failed", "hash", hash, "job_id", jobID, "error", err)
		return
	}
	if existed {
		p.logger.Debug("processor.ledger.kept_prior", "hash", hash, "job_id", jobID)
	}
}

func hashFile(file entity.CandidateFile) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
