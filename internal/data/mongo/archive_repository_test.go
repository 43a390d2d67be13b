package mongo

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func telemetryRecord(t *testing.T) *ledger.Record {
	t.Helper()
	observed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rec, err := ledger.Seal(ledger.Head{ProductID: "p-1"}, ledger.Input{
		ProductID: "p-1",
		Type:      ledger.RecordTypeTelemetry,
		Actor:     actor.New("gateway", actor.RoleAdmin),
		Payload:   ledger.TelemetryPayload{DeviceID: "dev-1", Temperature: 4.5, Humidity: 60, ObservedAt: observed},
		ClaimedAt: &observed,
	}, time.Date(2026, 5, 1, 12, 0, 1, 123456000, time.UTC))
	require.NoError(t, err)
	return rec
}

func TestArchiveDocument_RoundTrip(t *testing.T) {
	rec := telemetryRecord(t)

	doc, err := newArchiveDocument(rec)
	require.NoError(t, err)
	assert.Equal(t, "p-1:1", doc.ID)
	assert.Equal(t, "dev-1", doc.DeviceID)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded archiveDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	back := decoded.record()
	assert.Equal(t, rec.Timestamp, back.Timestamp, "microseconds survive the millisecond BSON date")
	assert.NoError(t, ledger.VerifyChain([]*ledger.Record{back}))
}

func TestArchiveDocument_NonTelemetryHasNoDevice(t *testing.T) {
	rec, err := ledger.Seal(ledger.Head{ProductID: "p-1"}, ledger.Input{
		ProductID: "p-1",
		Type:      ledger.RecordTypeCheckpoint,
		Actor:     actor.New("dist-1", actor.RoleDistributor),
		Payload:   ledger.CheckpointPayload{Location: "Hamburg"},
	}, time.Now())
	require.NoError(t, err)

	doc, err := newArchiveDocument(rec)
	require.NoError(t, err)
	assert.Empty(t, doc.DeviceID)
}

func TestArchiveRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	rec := telemetryRecord(t)

	mt.Run("put", func(mt *mtest.T) {
		repo := NewArchiveRepository(newTestLogger(), mt.DB, "")
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(mt, repo.Put(ctx, rec))
	})

	mt.Run("put twice is idempotent", func(mt *mtest.T) {
		repo := NewArchiveRepository(newTestLogger(), mt.DB, "")
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		assert.NoError(mt, repo.Put(ctx, rec))
	})

	mt.Run("put fails", func(mt *mtest.T) {
		repo := NewArchiveRepository(newTestLogger(), mt.DB, "")
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad value",
		}))

		err := repo.Put(ctx, rec)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to archive record")
	})

	mt.Run("list by device", func(mt *mtest.T) {
		repo := NewArchiveRepository(newTestLogger(), mt.DB, "archive")
		doc, err := newArchiveDocument(rec)
		require.NoError(mt, err)
		raw, err := bson.Marshal(doc)
		require.NoError(mt, err)
		var first bson.D
		require.NoError(mt, bson.Unmarshal(raw, &first))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "provenance.archive", mtest.FirstBatch, first))

		records, err := repo.ListByDevice(ctx, "dev-1", 10, 0)
		require.NoError(mt, err)
		require.Len(mt, records, 1)
		assert.Equal(mt, rec.Hash, records[0].Hash)
		assert.Equal(mt, rec.Timestamp, records[0].Timestamp)
	})

	mt.Run("count by device", func(mt *mtest.T) {
		repo := NewArchiveRepository(newTestLogger(), mt.DB, "archive")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "provenance.archive", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		count, err := repo.CountByDevice(ctx, "dev-1")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), count)
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		repo := NewArchiveRepository(newTestLogger(), mt.DB, "archive")
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(mt, repo.EnsureIndexes(ctx))
	})
}
