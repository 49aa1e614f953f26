package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

// SubmissionRepository maps file content hashes to the job they were submitted as.
type SubmissionRepository interface {
	GetByHash(ctx context.Context, hash string) (*entity.Submission, error)
	// Record stores sub unless its hash is already known. It returns the stored row
	// and whether it already existed.
	Record(ctx context.Context, sub entity.Submission) (*entity.Submission, bool, error)
	List(ctx context.Context, limit int) ([]entity.Submission, error)
}

type submissionRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSubmissionRepository(db *sql.DB, logger *slog.Logger) SubmissionRepository {
	return &submissionRepo{
		db:     db,
		logger: logger,
	}
}

// fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectSubmission = `SELECT content_hash, file_name, source_path, job_id, submitted_at FROM submissions`

func (r *submissionRepo) GetByHash(ctx context.Context, hash string) (*entity.Submission, error) {
	row := r.db.QueryRowContext(ctx, selectSubmission+` WHERE content_hash = ?`, hash)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %s: %w", hash, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get submission by hash", "hash", hash, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return sub, nil
}

func (r *submissionRepo) Record(ctx context.Context, sub entity.Submission) (*entity.Submission, bool, error) {
	if sub.ContentHash == "" || sub.JobID == "" {
		return nil, false, common.NewAppError("LEDGER_ERROR", "content hash and job id are required", common.ErrInvalidInput)
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO submissions (content_hash, file_name, source_path, job_id, submitted_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT (content_hash) DO NOTHING`,
		sub.ContentHash, sub.FileName, sub.SourcePath, sub.JobID.String(), sub.SubmittedAt.UTC().Format(timeLayout))
	if err != nil {
		r.logger.Error("failed to record submission", "hash", sub.ContentHash, "job_id", sub.JobID, "error", err)
		return nil, false, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}

	stored, err := r.GetByHash(ctx, sub.ContentHash)
	if err != nil {
		return nil, false, err
	}
	return stored, inserted == 0, nil
}

func (r *submissionRepo) List(ctx context.Context, limit int) ([]entity.Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, selectSubmission+` ORDER BY submitted_at DESC LIMIT ?`, limit)
	if err != nil {
		r.logger.Error("failed to list submissions", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(s scanner) (*entity.Submission, error) {
	var (
		sub   entity.Submission
		jobID string
		at    string
	)
	if err := s.Scan(&sub.ContentHash, &sub.FileName, &sub.SourcePath, &jobID, &at); err != nil {
		return nil, err
	}
	sub.JobID = entity.JobID(jobID)
	submittedAt, err := time.Parse(timeLayout, at)
	if err != nil {
		return nil, fmt.Errorf("parse submitted_at %q: %w", at, err)
	}
	sub.SubmittedAt = submittedAt
	return &sub, nil
}
