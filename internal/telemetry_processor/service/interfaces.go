package service

import (
	"context"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/telemetry"
)

// IngestionService records samples delivered by the telemetry feed
type IngestionService interface {
	IngestReading(ctx context.Context, reading *telemetry.Reading) (*ledger.Record, error)
}

// Ingestor appends telemetry records on behalf of an actor
type Ingestor interface {
	Ingest(ctx context.Context, a actor.Actor, r telemetry.Reading) (*ledger.Record, error)
}
