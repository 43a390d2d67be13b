package outbox_poller

import (
	"context"
	"testing"
	"time"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/outbox"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOutboxRepo mocks outbox.Repository
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockRecordPublisher mocks RecordPublisher
type MockRecordPublisher struct {
	mock.Mock
}

func (m *MockRecordPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// MockEventPublisher mocks producers.MessagePublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}

// MockArchive mocks ledger.Archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Put(ctx context.Context, rec *ledger.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockArchive) ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]*ledger.Record, error) {
	args := m.Called(ctx, deviceID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Record), args.Error(1)
}

func (m *MockArchive) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(int64), args.Error(1)
}

// telemetryMessage seals a telemetry record and wraps it in an outbox message
func telemetryMessage(t *testing.T, id int64) *outbox.Message {
	t.Helper()
	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reading := telemetry.Reading{DeviceID: "dev-1", ProductID: "prod-1", Temperature: 4, Humidity: 50, ObservedAt: observed}
	rec, err := ledger.Seal(ledger.Head{ProductID: "prod-1"}, ledger.Input{
		ProductID: "prod-1",
		Type:      ledger.RecordTypeTelemetry,
		Actor:     actor.New("telemetry-gateway", actor.RoleAdmin),
		Payload:   reading.Payload(""),
		ClaimedAt: &observed,
	}, observed.Add(time.Second))
	require.NoError(t, err)

	msg, err := outbox.NewMessage(rec)
	require.NoError(t, err)
	msg.ID = id
	return msg
}
