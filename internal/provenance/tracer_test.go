package provenance

import (
	"context"
	"testing"
	"time"

	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracer_Trace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.inTransit(t)

	_, err := f.core.Ingestor.Ingest(ctx, gateway, sample(p.ID, 4))
	require.NoError(t, err)

	tr, err := f.core.Tracer.Trace(ctx, distributor, p.ID, ledger.TimelineOptions{})
	require.NoError(t, err)
	assert.Equal(t, product.StateInTransit, tr.CurrentState)
	assert.Equal(t, p.ID, tr.Product.ID)
	require.Len(t, tr.Timeline, 5)
	assert.Equal(t, ledger.RecordTypeTelemetry, tr.Timeline[4].Type)

	_, err = f.core.Tracer.Trace(ctx, consumer, p.ID, ledger.TimelineOptions{})
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
}

func TestTracer_LatestReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.active(t)

	_, err := f.core.Tracer.LatestReading(ctx, producer, "dev-1")
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	rec, err := f.core.Ingestor.Ingest(ctx, gateway, sample(p.ID, 4))
	require.NoError(t, err)

	latest, err := f.core.Tracer.LatestReading(ctx, producer, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, rec.RecordID, latest.RecordID)

	_, err = f.core.Tracer.LatestReading(ctx, distributor, "dev-1")
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
}

func TestTracer_DeviceHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.active(t)

	for i := 0; i < 3; i++ {
		r := sample(p.ID, float64(i))
		r.ObservedAt = r.ObservedAt.Add(-time.Duration(i) * time.Second)
		rec, err := f.core.Ingestor.Ingest(ctx, gateway, r)
		require.NoError(t, err)
		require.NoError(t, f.archive.Put(ctx, rec))
	}

	records, total, err := f.core.Tracer.DeviceHistory(ctx, admin, "dev-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, records, 2)

	_, _, err = f.core.Tracer.DeviceHistory(ctx, producer, "dev-1", 1, 2)
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
}
