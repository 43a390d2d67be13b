package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/provenance-ledger/internal/data/memory"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRecordPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("ArchivesPublishesAndMarksProcessed", func(t *testing.T) {
		msg := telemetryMessage(t, 9)
		repo := &MockOutboxRepo{}
		events := &MockEventPublisher{}
		archive := memory.NewArchive()

		events.On("Publish", mock.Anything, "prod-1", json.RawMessage(msg.Payload)).Return(nil).Once()
		repo.On("UpdateStatus", mock.Anything, int64(9), shared.OutboxStatusProcessed).Return(nil).Once()

		pub := NewRecordPublisher(repo, archive, events, slog.Default())
		require.NoError(t, pub.Publish(ctx, msg))

		archived, err := archive.ListByDevice(ctx, "dev-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, archived, 1)
		assert.Equal(t, int64(1), archived[0].RecordID)
		assert.NoError(t, ledger.VerifyChain(archived))

		repo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("RedeliveryIsHarmless", func(t *testing.T) {
		msg := telemetryMessage(t, 9)
		repo := &MockOutboxRepo{}
		archive := memory.NewArchive()
		repo.On("UpdateStatus", mock.Anything, int64(9), shared.OutboxStatusProcessed).Return(nil).Twice()

		pub := NewRecordPublisher(repo, archive, nil, slog.Default())
		require.NoError(t, pub.Publish(ctx, msg))
		require.NoError(t, pub.Publish(ctx, msg))

		n, err := archive.CountByDevice(ctx, "dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("ArchiveFailureLeavesMessagePending", func(t *testing.T) {
		msg := telemetryMessage(t, 9)
		repo := &MockOutboxRepo{}
		archive := &MockArchive{}
		events := &MockEventPublisher{}
		archive.On("Put", mock.Anything, mock.Anything).Return(errors.New("mongo down")).Once()

		pub := NewRecordPublisher(repo, archive, events, slog.Default())
		err := pub.Publish(ctx, msg)

		assert.ErrorContains(t, err, "failed to archive record prod-1/1")
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("EventFailureLeavesMessagePending", func(t *testing.T) {
		msg := telemetryMessage(t, 9)
		repo := &MockOutboxRepo{}
		events := &MockEventPublisher{}
		events.On("Publish", mock.Anything, "prod-1", mock.Anything).Return(errors.New("broker down")).Once()

		pub := NewRecordPublisher(repo, memory.NewArchive(), events, slog.Default())
		err := pub.Publish(ctx, msg)

		assert.ErrorContains(t, err, "failed to publish record prod-1/1")
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CorruptPayloadMarkedFailed", func(t *testing.T) {
		msg := telemetryMessage(t, 9)
		msg.Payload = []byte("{broken")
		repo := &MockOutboxRepo{}
		repo.On("UpdateStatus", mock.Anything, int64(9), shared.OutboxStatusFailedToPublish).Return(nil).Once()

		pub := NewRecordPublisher(repo, memory.NewArchive(), nil, slog.Default())
		err := pub.Publish(ctx, msg)

		assert.ErrorContains(t, err, "unmarshal payload for outbox 9 failed")
		repo.AssertExpectations(t)
	})
}
