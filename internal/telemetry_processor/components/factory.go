// Package components assembles the telemetry processor's services from
// configuration.
package components

import (
	"fmt"
	"log/slog"

	"github.com/provenance-ledger/internal/config"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/telemetry_processor/service"
)

// GatewayActor returns the identity feed samples are attributed to
func GatewayActor(cfg *config.TelemetryConfig) (actor.Actor, error) {
	role, err := actor.ParseRole(cfg.GatewayActorRole)
	if err != nil {
		return actor.Actor{}, fmt.Errorf("invalid TELEMETRY_GATEWAY_ACTOR_ROLE: %w", err)
	}
	a := actor.New(cfg.GatewayActorID, role)
	if !a.Verified() {
		return actor.Actor{}, fmt.Errorf("TELEMETRY_GATEWAY_ACTOR_ID is required")
	}
	return a, nil
}

// RetryPolicy maps the retry settings onto the shared policy
func RetryPolicy(cfg *config.RetryConfig) shared.RetryPolicy {
	return shared.RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.Backoff}
}

// CreateIngestionService creates the ingestion service with all its
// dependencies. The pooled variant is returned when the pool can be built.
func CreateIngestionService(
	ingestor service.Ingestor,
	logger *slog.Logger,
	cfg *config.Config,
) (service.IngestionService, func(), error) {
	gateway, err := GatewayActor(&cfg.Telemetry)
	if err != nil {
		return nil, nil, err
	}

	baseService := service.NewIngestionService(
		ingestor,
		gateway,
		RetryPolicy(&cfg.Retry),
		logger.With("component", "ingestion"),
	)

	workerPoolService, err := service.NewWorkerPoolIngestionService(
		baseService,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService, func() {}, nil
	}

	logger.Info("Created worker pool ingestion service", "pool_size", cfg.WorkerPool.Size, "gateway_actor", gateway.String())
	return workerPoolService, workerPoolService.Shutdown, nil
}
