package service

import (
	"context"
	"log/slog"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/provenance-ledger/internal/provenance"
)

// RecordServiceImpl implements the RecordService interface
type RecordServiceImpl struct {
	ledger   *provenance.Ledger
	ingestor *provenance.Ingestor
	retry    shared.RetryPolicy
	logger   *slog.Logger
}

// NewRecordService creates a new record service
func NewRecordService(core *provenance.Core, retry shared.RetryPolicy, logger *slog.Logger) RecordService {
	return &RecordServiceImpl{
		ledger:   core.Ledger,
		ingestor: core.Ingestor,
		retry:    retry,
		logger:   logger,
	}
}

func (s *RecordServiceImpl) RecordCheckpoint(ctx context.Context, a actor.Actor, productID string, in provenance.CheckpointInput, token string) (*ledger.Record, error) {
	rec, err := shared.Retry(ctx, policyFor(s.retry, token), func(ctx context.Context) (*ledger.Record, error) {
		return s.ledger.RecordCheckpoint(ctx, a, productID, in, token)
	})
	s.warnStorageFault("checkpoint", productID, err)
	return rec, err
}

// IngestTelemetry always retries: every sample carries its own dedupe key
func (s *RecordServiceImpl) IngestTelemetry(ctx context.Context, a actor.Actor, reading telemetry.Reading) (*ledger.Record, error) {
	rec, err := shared.Retry(ctx, s.retry, func(ctx context.Context) (*ledger.Record, error) {
		return s.ingestor.Ingest(ctx, a, reading)
	})
	s.warnStorageFault("telemetry", reading.ProductID, err)
	return rec, err
}

func (s *RecordServiceImpl) CorrectRecord(ctx context.Context, a actor.Actor, productID string, recordID int64, reason, token string) (*ledger.Record, error) {
	rec, err := shared.Retry(ctx, policyFor(s.retry, token), func(ctx context.Context) (*ledger.Record, error) {
		return s.ledger.Correct(ctx, a, productID, recordID, reason, token)
	})
	s.warnStorageFault("correction", productID, err)
	return rec, err
}

func (s *RecordServiceImpl) warnStorageFault(op, productID string, err error) {
	if shared.IsRetryable(err) {
		s.logger.Warn("Write failed after retries", "op", op, "product_id", productID, "error", err)
	}
}
