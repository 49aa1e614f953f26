package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/extract-tracker/internal/core"
)

// ScanDirectory walks root and returns the files whose media type is accepted,
// skipping hidden files and directories when requested.
func ScanDirectory(root string, accepted []string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var paths []string
	var stats DirStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Scanned++
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !Accepted(path, accepted) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

type Usecase struct {
	proc     FileProcessor
	accepted []string
	logger   *slog.Logger
}

func NewUsecase(proc FileProcessor, accepted []string, logger *slog.Logger) *Usecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Usecase{proc: proc, accepted: accepted, logger: logger}
}

// IngestDirectory processes every accepted file under root one at a time.
// Per-file failures are recorded in the results and do not stop the walk.
func (u *Usecase) IngestDirectory(ctx context.Context, root string, skipHidden, force bool) ([]FileResult, DirStats, error) {
	paths, stats, err := ScanDirectory(root, u.accepted, skipHidden)
	if err != nil {
		return nil, stats, err
	}

	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		out, err := u.proc.ProcessFile(ctx, core.Request{Path: path, Force: force})
		if err != nil {
			u.logger.Warn("ingest.file.failed", "path", path, "error", err)
			res := FileResult{Path: path, Err: err.Error()}
			if out != nil {
				res.JobID = out.JobID.String()
				res.HashHex = out.ContentHash
			}
			results = append(results, res)
			stats.Failed++
			continue
		}
		results = append(results, FileResult{
			Path:         path,
			JobID:        out.JobID.String(),
			Deduplicated: out.Deduplicated,
			HashHex:      out.ContentHash,
		})
		stats.Succeeded++
		if out.Deduplicated {
			stats.Deduplicated++
		}
	}

	u.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
