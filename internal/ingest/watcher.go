package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots         []string      // directories to watch (recursive)
	AcceptedTypes []string      // media types to emit; nil means the default set
	InitialScan   bool          // if true, walk roots and emit existing files
	SkipHidden    bool          // ignore dot files and dot directories
	Debounce      time.Duration // coalesce rapid create/write bursts
	Logger        *slog.Logger
}

// StartWatcher emits the paths of accepted files as they appear or change under the roots.
// Both channels are closed when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	addDir := func(root string, onFile func(string)) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if cfg.SkipHidden && path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if onFile != nil && Accepted(path, cfg.AcceptedTypes) {
				onFile(path)
			}
			return nil
		})
	}
	var initial []string
	var collect func(string)
	if cfg.InitialScan {
		collect = func(p string) { initial = append(initial, p) }
	}
	for _, r := range cfg.Roots {
		if err := addDir(r, collect); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	logger.Info("watcher started", "roots", cfg.Roots, "initial_files", len(initial))

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		emit := func(path string) bool {
			select {
			case evCh <- path:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		pending := map[string]struct{}{}
		flush := func() bool {
			for p := range pending {
				delete(pending, p)
				if !emit(p) {
					return false
				}
			}
			return true
		}
		schedule := func() bool {
			if cfg.Debounce <= 0 {
				return flush()
			}
			if timer == nil {
				timer = time.NewTimer(cfg.Debounce)
			} else {
				timer.Reset(cfg.Debounce)
			}
			timerC = timer.C
			return true
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						// files may land in a new directory before it is watched
						err := addDir(e.Name, func(p string) { pending[p] = struct{}{} })
						if err != nil {
							logger.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
						}
						if len(pending) > 0 && !schedule() {
							return
						}
						continue
					}
				}
				// a rename reports the old name; the new name arrives as Create
				if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
					continue
				}
				if !Accepted(e.Name, cfg.AcceptedTypes) {
					continue
				}
				pending[e.Name] = struct{}{}
				if !schedule() {
					return
				}
			case <-timerC:
				timerC = nil
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
