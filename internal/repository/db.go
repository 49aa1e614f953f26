package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Config struct {
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	content_hash TEXT PRIMARY KEY,
	file_name    TEXT NOT NULL,
	source_path  TEXT NOT NULL DEFAULT '',
	job_id       TEXT NOT NULL,
	submitted_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_job_id ON submissions (job_id);
`

// Open opens (creating if needed) the sqlite ledger at cfg.Path and applies the schema.
// Path ":memory:" gives a private in-memory database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	logger.Info("opening submission ledger", "path", cfg.Path)
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			logger.Error("failed to create ledger directory", "path", cfg.Path, "error", err)
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open submission ledger", "error", err)
		return nil, err
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		logger.Error("failed to apply ledger schema", "error", err)
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("submission ledger ready")
	return db, nil
}

// Close closes the ledger gracefully.
func Close(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	logger.Info("closing submission ledger")
	if err := db.Close(); err != nil {
		logger.Error("failed to close submission ledger", "error", err)
	}
}

// HealthCheck pings the ledger.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging submission ledger")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("submission ledger ping failed", "error", err)
		return err
	}
	return nil
}
