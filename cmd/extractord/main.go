// Command extractord watches drop folders and submits every new document to the extraction service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/extract-tracker/internal/async"
	"github.com/joseph-ayodele/extract-tracker/internal/client"
	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/core"
	"github.com/joseph-ayodele/extract-tracker/internal/export"
	"github.com/joseph-ayodele/extract-tracker/internal/ingest"
	"github.com/joseph-ayodele/extract-tracker/internal/notify"
	"github.com/joseph-ayodele/extract-tracker/internal/poller"
	"github.com/joseph-ayodele/extract-tracker/internal/progress"
	"github.com/joseph-ayodele/extract-tracker/internal/repository"
	"github.com/joseph-ayodele/extract-tracker/internal/server"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := cfg.ValidateDaemon(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("extractord stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := server.ConnectLedger(ctx, cfg.Ledger.Path, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db, logger)

	api, err := client.New(cfg.API.BaseURL, client.WithLogger(logger), client.WithTimeout(cfg.API.Timeout))
	if err != nil {
		return err
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.Notify.AMQPURL != "" {
		publisher, err := notify.DialAMQP(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("notify.amqp.close_error", "error", err)
			}
		}()
		notifiers = append(notifiers, publisher)
	}

	registry := poller.NewRegistry(api, notifiers,
		poller.WithInterval(cfg.Poll.Interval),
		poller.WithLogger(logger),
	)

	opts := []core.Option{
		core.WithLedger(repository.NewSubmissionRepository(db, logger)),
		core.WithLimits(cfg.Intake.AcceptedTypes, cfg.Intake.MaxUploadMB),
		core.WithSimulator(progress.NewSimulator(cfg.Intake.ProgressTick)),
		core.WithWait(true),
	}
	if cfg.Watch.ExportDir != "" {
		opts = append(opts, core.WithExport(export.NewService(logger), cfg.Watch.ExportDir))
	}
	proc := core.NewProcessor(logger, api, registry, notifiers, opts...)

	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Watch.Workers),
		async.WithQueueSize(cfg.Watch.QueueSize),
	)

	health := server.NewHealthServer(logger)
	health.AddCheck("ledger", server.LedgerCheck(db, logger))
	health.AddCheck("api", func(ctx context.Context) error {
		_, err := api.Health(ctx)
		return err
	})

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	paths, watchErrs, err := ingest.StartWatcher(gctx, ingest.WatchConfig{
		Roots:         cfg.Watch.Dirs,
		AcceptedTypes: cfg.Intake.AcceptedTypes,
		InitialScan:   true,
		SkipHidden:    true,
		Debounce:      cfg.Watch.Debounce,
		Logger:        logger,
	})
	if err != nil {
		_ = lis.Close()
		return err
	}

	logger.Info("extractord started",
		"api", cfg.API.BaseURL,
		"watch", cfg.Watch.Dirs,
		"workers", cfg.Watch.Workers,
		"grpc_addr", lis.Addr().String(),
	)

	g.Go(func() error {
		return health.Serve(gctx, lis)
	})
	g.Go(func() error {
		return feed(gctx, paths, queue)
	})
	g.Go(func() error {
		for err := range watchErrs {
			logger.Warn("watcher error", "error", err)
		}
		return nil
	})

	err = g.Wait()

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	if serr := registry.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("poller registry shutdown", "error", serr)
	}
	return err
}

type enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// feed hands watched paths to the queue until ctx ends or paths closes.
func feed(ctx context.Context, paths <-chan string, q enqueuer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-paths:
			if !ok {
				return ctx.Err()
			}
			if err := q.Enqueue(ctx, async.Job{Path: path}); err != nil {
				return err
			}
		}
	}
}
