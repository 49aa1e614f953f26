// Package ingest discovers local documents in drop folders and hands them to the processor.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/extract-tracker/internal/core"
)

// FileResult is the per-file ingest outcome.
type FileResult struct {
	Path         string
	JobID        string
	Deduplicated bool
	HashHex      string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// FileProcessor is satisfied by *core.Processor.
type FileProcessor interface {
	ProcessFile(ctx context.Context, req core.Request) (*core.Outcome, error)
}
