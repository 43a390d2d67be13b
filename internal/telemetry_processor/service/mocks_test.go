package service

import (
	"context"
	"time"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/stretchr/testify/mock"
)

// MockIngestionService mocks the IngestionService interface
type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) IngestReading(ctx context.Context, reading *telemetry.Reading) (*ledger.Record, error) {
	args := m.Called(ctx, reading)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Record), args.Error(1)
}

// MockIngestor mocks the Ingestor interface
type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) Ingest(ctx context.Context, a actor.Actor, r telemetry.Reading) (*ledger.Record, error) {
	args := m.Called(ctx, a, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Record), args.Error(1)
}

func testReading() telemetry.Reading {
	return telemetry.Reading{
		DeviceID:    "dev-1",
		ProductID:   "prod-1",
		Temperature: 4.5,
		Humidity:    60,
		ObservedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
