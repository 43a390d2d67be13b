package service

import (
	"context"
	"log/slog"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/domain/telemetry"
)

// ingestionService attributes feed samples to the gateway identity and
// retries storage faults. Redelivery is safe because each sample carries
// its own dedupe key.
type ingestionService struct {
	ingestor Ingestor
	gateway  actor.Actor
	retry    shared.RetryPolicy
	logger   *slog.Logger
}

// NewIngestionService creates the base ingestion service
func NewIngestionService(ingestor Ingestor, gateway actor.Actor, retry shared.RetryPolicy, logger *slog.Logger) IngestionService {
	return &ingestionService{
		ingestor: ingestor,
		gateway:  gateway,
		retry:    retry,
		logger:   logger,
	}
}

func (s *ingestionService) IngestReading(ctx context.Context, reading *telemetry.Reading) (*ledger.Record, error) {
	attempt := 0
	return shared.Retry(ctx, s.retry, func(ctx context.Context) (*ledger.Record, error) {
		attempt++
		rec, err := s.ingestor.Ingest(ctx, s.gateway, *reading)
		if err != nil && shared.IsRetryable(err) {
			s.logger.Warn("Storage fault while ingesting sample",
				"device_id", reading.DeviceID,
				"product_id", reading.ProductID,
				"attempt", attempt,
				"error", err,
			)
		}
		return rec, err
	})
}
