package server

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	repo "github.com/joseph-ayodele/extract-tracker/internal/repository"
)

// LedgerConfig holds submission ledger connection settings
type LedgerConfig struct {
	Path        string
	BusyTimeout time.Duration
	PingTimeout time.Duration
}

// ConnectLedger opens the submission ledger at path with daemon defaults
func ConnectLedger(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	config := LedgerConfig{
		Path:        path,
		BusyTimeout: 5 * time.Second,
		PingTimeout: 3 * time.Second,
	}

	db, err := repo.Open(ctx, repo.Config{
		Path:        config.Path,
		BusyTimeout: config.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := PingLedger(ctx, db, logger, config.PingTimeout); err != nil {
		repo.Close(db, logger)
		return nil, err
	}
	return db, nil
}

// PingLedger pings the ledger to ensure it's responsive
func PingLedger(ctx context.Context, db *sql.DB, logger *slog.Logger, timeout time.Duration) error {
	return repo.HealthCheck(ctx, db, timeout, logger)
}

// LedgerCheck adapts the ledger ping to a health Check.
func LedgerCheck(db *sql.DB, logger *slog.Logger) Check {
	return func(ctx context.Context) error {
		return PingLedger(ctx, db, logger, 0)
	}
}
