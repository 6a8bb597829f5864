package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"stockroom.app/internal/obs"
)

// BackofficeService is the service name published on the health endpoint.
const BackofficeService = "stockroom.v1.Backoffice"

const defaultPollInterval = 5 * time.Second

// HealthReporter mirrors the readiness probe onto the standard gRPC health
// service.
type HealthReporter struct {
	server    *health.Server
	readiness readinessChecker
	interval  time.Duration
	logger    *zap.Logger
}

// NewHealthReporter starts out NOT_SERVING until the first probe passes.
func NewHealthReporter(r readinessChecker, interval time.Duration, logger *zap.Logger) *HealthReporter {
	if r == nil {
		r = ReadyProbe{}
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(BackofficeService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{server: hs, readiness: r, interval: interval, logger: logger}
}

// Register attaches the health service to srv.
func (h *HealthReporter) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, h.server)
}

// Probe runs one readiness check and publishes the result.
func (h *HealthReporter) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	ok := true
	if err := h.readiness.Check(ctx); err != nil {
		h.logger.Warn("health probe failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
		ok = false
	}
	obs.SetReady(ok)
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(BackofficeService, status)
	return ok
}

// Run probes on every tick until ctx ends, then marks everything NOT_SERVING.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Probe(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}
