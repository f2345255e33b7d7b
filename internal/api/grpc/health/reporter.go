package health

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/journal-exchange/internal/logger"
)

// Pinger is a dependency whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reporter probes dependencies periodically and publishes the result on a
// grpc.health.v1 server. Each probe is reported under its own service name;
// the overall status ("") is SERVING only when every probe passes.
type Reporter struct {
	server   *health.Server
	probes   map[string]Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger
}

// NewReporter creates a Reporter publishing to server.
func NewReporter(server *health.Server, probes map[string]Pinger, interval time.Duration, logger *logger.Logger) *Reporter {
	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &Reporter{
		server:   server,
		probes:   probes,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run probes immediately and then every interval until ctx is done, when all
// services are marked NOT_SERVING.
func (r *Reporter) Run(ctx context.Context) error {
	r.Check(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.server.Shutdown()
			return nil
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}

// Check runs every probe once and updates the serving statuses.
func (r *Reporter) Check(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING

	for name, probe := range r.probes {
		status := healthpb.HealthCheckResponse_SERVING

		pingCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := probe.Ping(pingCtx)
		cancel()

		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			r.logger.Warn("Health reporter: probe failed",
				"probe", name,
				"error", err.Error())
		}
		r.server.SetServingStatus(name, status)
	}

	r.server.SetServingStatus("", overall)
}
