package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/extract-tracker/internal/client"
	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/intake"
	"github.com/joseph-ayodele/extract-tracker/internal/notify"
	"github.com/joseph-ayodele/extract-tracker/internal/poller"
	"github.com/joseph-ayodele/extract-tracker/internal/present"
	"github.com/joseph-ayodele/extract-tracker/internal/repository"
)

// app holds what every subcommand shares. It is built once per invocation.
type app struct {
	cfg      *common.Config
	logger   *slog.Logger
	out      io.Writer
	errOut   io.Writer
	client   *client.Client
	render   *present.Renderer
	notifier notify.Notifier

	ledgerDB *sql.DB
}

func newApp(cfg *common.Config, out, errOut io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := common.NewLogger(errOut, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	c, err := client.New(cfg.API.BaseURL, client.WithLogger(logger), client.WithTimeout(cfg.API.Timeout))
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		out:      out,
		errOut:   errOut,
		client:   c,
		render:   present.NewRenderer(out),
		notifier: notify.Multi{consoleNotifier(errOut), notify.NewLogNotifier(logger)},
	}, nil
}

// consoleNotifier shows notifications the way a toast would: one short line each.
func consoleNotifier(w io.Writer) notify.Notifier {
	return notify.Func(func(_ context.Context, n notify.Notification) {
		line := fmt.Sprintf("[%s] %s", n.Kind, n.Title)
		if n.Description != "" {
			line += ": " + n.Description
		}
		fmt.Fprintln(w, line)
	})
}

func (a *app) registry() *poller.Registry {
	return poller.NewRegistry(a.client, a.notifier,
		poller.WithInterval(a.cfg.Poll.Interval),
		poller.WithLogger(a.logger),
	)
}

func (a *app) ledger(ctx context.Context) (repository.SubmissionRepository, error) {
	if a.ledgerDB == nil {
		db, err := repository.Open(ctx, repository.Config{Path: a.cfg.Ledger.Path}, a.logger)
		if err != nil {
			return nil, err
		}
		a.ledgerDB = db
	}
	return repository.NewSubmissionRepository(a.ledgerDB, a.logger), nil
}

func (a *app) close() {
	if a.ledgerDB != nil {
		repository.Close(a.ledgerDB, a.logger)
		a.ledgerDB = nil
	}
}

// progressPrinter redraws a single progress line on w.
func progressPrinter(w io.Writer) func(int) {
	last := -1
	return func(p int) {
		if p == last {
			return
		}
		last = p
		end := ""
		if p >= 100 {
			end = "\n"
		}
		fmt.Fprintf(w, "\rUploading %s%s", present.ProgressBar(p, 30), end)
	}
}

func splitTypes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// reportedError marks an error the user has already seen as a notification.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// markReported wraps errors whose notification was already shown so main does not print them again.
func markReported(err error) error {
	if err == nil {
		return nil
	}
	var vErr *intake.ValidationError
	var apiErr *client.APIError
	var pollErr *poller.PollError
	if errors.As(err, &vErr) || errors.As(err, &apiErr) || errors.As(err, &pollErr) {
		return reportedError{err: err}
	}
	return err
}
