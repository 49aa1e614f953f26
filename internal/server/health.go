package server

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net"
	"slices"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check probes one dependency. A nil error means serving.
type Check func(ctx context.Context) error

// HealthServer exposes the standard gRPC health service, fed by periodic dependency checks.
// Each check is published under its own service name; "" reports all checks together.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	checks map[string]Check
}

type HealthOption func(*HealthServer)

func WithProbeInterval(d time.Duration) HealthOption {
	return func(s *HealthServer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithProbeTimeout(d time.Duration) HealthOption {
	return func(s *HealthServer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewHealthServer(logger *slog.Logger, opts ...HealthOption) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// reflection for grpcurl
	reflection.Register(gs)

	s := &HealthServer{
		grpc:     gs,
		health:   hs,
		logger:   logger,
		interval: 15 * time.Second,
		timeout:  5 * time.Second,
		checks:   map[string]Check{},
	}
	for _, opt := range opts {
		opt(s)
	}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// AddCheck registers check under service. Its status is NOT_SERVING until the first probe.
func (s *HealthServer) AddCheck(service string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[service] = check
	s.health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Probe runs every check once and publishes the results. It returns the joined failures.
func (s *HealthServer) Probe(ctx context.Context) error {
	s.mu.Lock()
	checks := maps.Clone(s.checks)
	s.mu.Unlock()

	var errs []error
	for _, service := range slices.Sorted(maps.Keys(checks)) {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := checks[service](cctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			errs = append(errs, err)
			s.logger.Warn("health.check.failed", "service", service, "error", err)
		}
		s.health.SetServingStatus(service, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if len(errs) > 0 {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	return errors.Join(errs...)
}

// Serve probes periodically and serves gRPC on lis until ctx is done, then stops gracefully.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	go s.monitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("grpc health listening", "addr", lis.Addr().String())
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *HealthServer) monitor(ctx context.Context) {
	_ = s.Probe(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Probe(ctx)
		}
	}
}
