package provenance

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/provenance-ledger/internal/data/memory"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestor_DeduplicatesRedelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.active(t)
	r := sample(p.ID, 4)

	first, err := f.core.Ingestor.Ingest(ctx, gateway, r)
	require.NoError(t, err)
	second, err := f.core.Ingestor.Ingest(ctx, gateway, r)
	require.NoError(t, err)
	assert.Equal(t, first.RecordID, second.RecordID)

	tl, err := f.core.Ledger.Timeline(ctx, admin, p.ID, ledger.TimelineOptions{Types: []ledger.RecordType{ledger.RecordTypeTelemetry}})
	require.NoError(t, err)
	assert.Equal(t, 1, tl.Len())
}

func TestIngestor_DeduplicatesWithoutWindow(t *testing.T) {
	store := memory.NewStore()
	core := New(store, slog.New(slog.NewTextHandler(os.Stdout, nil)), Options{})
	ctx := context.Background()

	p, err := core.Registry.Create(ctx, producer, productAttrs(), "")
	require.NoError(t, err)
	_, _, err = core.Machine.BindRFID(ctx, producer, p.ID, "RF-7", "")
	require.NoError(t, err)

	r := sample(p.ID, 4)
	first, err := core.Ingestor.Ingest(ctx, gateway, r)
	require.NoError(t, err)
	second, err := core.Ingestor.Ingest(ctx, producer, r)
	require.NoError(t, err)
	assert.Equal(t, first.RecordID, second.RecordID, "the durable key catches redelivery the window missed")

	recs, err := store.Records(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestIngestor_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.active(t)

	tests := []struct {
		name   string
		mutate func(r *telemetry.Reading)
		field  string
	}{
		{"too hot", func(r *telemetry.Reading) { r.Temperature = 95 }, "temperature"},
		{"too cold", func(r *telemetry.Reading) { r.Temperature = -41 }, "temperature"},
		{"humidity", func(r *telemetry.Reading) { r.Humidity = 101 }, "humidity"},
		{"latitude", func(r *telemetry.Reading) { r.Latitude = 91 }, "latitude"},
		{"longitude", func(r *telemetry.Reading) { r.Longitude = -181 }, "longitude"},
		{"no device", func(r *telemetry.Reading) { r.DeviceID = "" }, "device_id"},
		{"future", func(r *telemetry.Reading) { r.ObservedAt = time.Now().Add(time.Hour) }, "observed_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sample(p.ID, 4)
			tt.mutate(&r)
			_, err := f.core.Ingestor.Ingest(ctx, gateway, r)
			assert.ErrorIs(t, err, telemetry.ErrInvalidSample{Field: tt.field})
		})
	}

	recs, err := f.store.Records(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestIngestor_StateAndAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.created(t)
	_, err := f.core.Ingestor.Ingest(ctx, gateway, sample(created.ID, 4))
	assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))

	_, err = f.core.Ingestor.Ingest(ctx, gateway, sample("missing", 4))
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	p := f.active(t)
	_, err = f.core.Ingestor.Ingest(ctx, consumer, sample(p.ID, 4))
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))

	_, err = f.core.Ingestor.Ingest(ctx, actor.Actor{}, sample(p.ID, 4))
	assert.Equal(t, shared.KindUnauthenticated, shared.KindOf(err))
}

func TestIngestor_RedeliveryByAnotherActorIsAuthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.active(t)
	r := sample(p.ID, 4)
	stranger := actor.New("consumer-9", actor.RoleConsumer)

	first, err := f.core.Ingestor.Ingest(ctx, gateway, r)
	require.NoError(t, err)

	rec, err := f.core.Ingestor.Ingest(ctx, stranger, r)
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
	assert.Nil(t, rec)

	// The producer may append telemetry, so the stored record is returned
	rec, err = f.core.Ingestor.Ingest(ctx, producer, r)
	require.NoError(t, err)
	assert.Equal(t, first.RecordID, rec.RecordID)

	_, _, err = f.core.Machine.Transition(ctx, admin, p.ID, product.EventDispose, TransitionOptions{})
	require.NoError(t, err)

	rec, err = f.core.Ingestor.Ingest(ctx, stranger, r)
	assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))
	assert.Nil(t, rec)

	rec, err = f.core.Ingestor.Ingest(ctx, gateway, r)
	require.NoError(t, err)
	assert.Equal(t, first.RecordID, rec.RecordID)
}

func TestIngestor_RedeliveryWithoutWindowIsAuthorized(t *testing.T) {
	store := memory.NewStore()
	core := New(store, slog.New(slog.NewTextHandler(os.Stdout, nil)), Options{})
	ctx := context.Background()

	p, err := core.Registry.Create(ctx, producer, productAttrs(), "")
	require.NoError(t, err)
	_, _, err = core.Machine.BindRFID(ctx, producer, p.ID, "RF-9", "")
	require.NoError(t, err)

	r := sample(p.ID, 4)
	_, err = core.Ingestor.Ingest(ctx, gateway, r)
	require.NoError(t, err)

	_, err = core.Ingestor.Ingest(ctx, actor.New("consumer-9", actor.RoleConsumer), r)
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
}

func TestIngestor_RedeliveryKeepsCachedReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.active(t)
	r := sample(p.ID, 4)

	first, err := f.core.Ingestor.Ingest(ctx, gateway, r)
	require.NoError(t, err)

	altered := r
	altered.Temperature = 35
	rec, err := f.core.Ingestor.Ingest(ctx, gateway, altered)
	require.NoError(t, err)
	assert.Equal(t, first.RecordID, rec.RecordID)

	latest, err := f.cache.Latest(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 4.0, latest.Temperature)
	assert.Empty(t, latest.Excursion)
}

func TestIngestor_FlagsExcursionsAndCachesLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.active(t)

	rec, err := f.core.Ingestor.Ingest(ctx, gateway, sample(p.ID, 35))
	require.NoError(t, err)

	var payload ledger.TelemetryPayload
	require.NoError(t, rec.DecodePayload(&payload))
	assert.Equal(t, telemetry.ExcursionAbove, payload.Excursion)
	assert.Equal(t, "dev-1", payload.DeviceID)

	latest, err := f.cache.Latest(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, rec.RecordID, latest.RecordID)
	assert.Equal(t, telemetry.ExcursionAbove, latest.Excursion)
}

func TestIngestor_RateLimit(t *testing.T) {
	store := memory.NewStore()
	core := New(store, slog.New(slog.NewTextHandler(os.Stdout, nil)), Options{
		Limiter: telemetry.NewLimiter(0.001, 1, 10, time.Minute),
	})
	ctx := context.Background()

	p, err := core.Registry.Create(ctx, producer, productAttrs(), "")
	require.NoError(t, err)
	_, _, err = core.Machine.BindRFID(ctx, producer, p.ID, "RF-8", "")
	require.NoError(t, err)

	first := sample(p.ID, 4)
	_, err = core.Ingestor.Ingest(ctx, gateway, first)
	require.NoError(t, err)

	next := first
	next.ObservedAt = first.ObservedAt.Add(time.Millisecond)
	_, err = core.Ingestor.Ingest(ctx, gateway, next)
	assert.Equal(t, shared.KindRateLimited, shared.KindOf(err))
}
