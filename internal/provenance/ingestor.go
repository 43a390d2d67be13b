package provenance

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/provenance-ledger/internal/domain/access"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/telemetry"
)

// Ingestor turns validated sensor samples into telemetry records. It never
// changes lifecycle state.
type Ingestor struct {
	store   ledger.Store
	gate    *Gate
	now     Clock
	bounds  telemetry.Bounds
	band    *telemetry.ExcursionBand
	window  telemetry.DedupWindow
	cache   telemetry.ReadingCache
	limiter *telemetry.Limiter
	logger  *slog.Logger
}

func NewIngestor(store ledger.Store, gate *Gate, opts Options, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:   store,
		gate:    gate,
		now:     opts.Now,
		bounds:  opts.Bounds,
		band:    opts.Band,
		window:  opts.Window,
		cache:   opts.Cache,
		limiter: opts.Limiter,
		logger:  logger,
	}
}

// Ingest records r on behalf of a. Redelivery of the same (device, product,
// observedAt) tuple returns the record stored by the first delivery; a
// caller other than the original submitter must pass the gate first.
func (i *Ingestor) Ingest(ctx context.Context, a actor.Actor, r telemetry.Reading) (*ledger.Record, error) {
	if !a.Verified() {
		return nil, access.ErrUnauthenticated{}
	}
	r.DeviceID = strings.TrimSpace(r.DeviceID)
	r.ProductID = strings.TrimSpace(r.ProductID)
	if err := i.bounds.Validate(r, i.now()); err != nil {
		return nil, err
	}

	key := r.DedupeKey()
	if rec := i.recent(ctx, key); rec != nil && rec.ActorID == a.ID {
		i.logger.Debug("Duplicate sample dropped", "device_id", r.DeviceID, "product_id", r.ProductID, "record_id", rec.RecordID)
		return rec, nil
	}
	if !i.limiter.Allow(r.DeviceID) {
		return nil, telemetry.ErrRateLimited{DeviceID: r.DeviceID}
	}

	excursion := ""
	if i.band != nil {
		excursion = i.band.Classify(r.Temperature)
	}

	var (
		out       *ledger.Record
		duplicate bool
	)
	err := i.store.Update(ctx, r.ProductID, func(w ledger.Writer) error {
		p, err := lockedProduct(w, r.ProductID)
		if err != nil {
			return err
		}
		existing, err := existingRecord(ctx, w, key, ledger.RecordTypeTelemetry, "")
		if err != nil {
			return err
		}
		if existing == nil || existing.ActorID != a.ID {
			if err := i.gate.Authorize(a, access.ActionAppendTelemetry, p); err != nil {
				return err
			}
		}
		if existing != nil {
			out, duplicate = existing, true
			return nil
		}
		out, err = sealAndAppend(ctx, w, ledger.Input{
			ProductID:      r.ProductID,
			Type:           ledger.RecordTypeTelemetry,
			Actor:          a,
			Payload:        r.Payload(excursion),
			ClaimedAt:      &r.ObservedAt,
			IdempotencyKey: key,
		}, i.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	i.remember(ctx, key, out)
	if duplicate {
		return out, nil
	}
	i.cacheLatest(ctx, r, out, excursion)

	if excursion != "" {
		i.logger.Warn("Temperature excursion",
			"device_id", r.DeviceID,
			"product_id", r.ProductID,
			"temperature", r.Temperature,
			"excursion", excursion,
			"record_id", out.RecordID,
		)
	}
	i.logger.Debug("Telemetry recorded", "device_id", r.DeviceID, "product_id", r.ProductID, "record_id", out.RecordID)
	return out, nil
}

// recent returns the record a recent delivery of key produced. Window
// failures are not fatal; the durable key check still deduplicates.
func (i *Ingestor) recent(ctx context.Context, key string) *ledger.Record {
	if i.window == nil {
		return nil
	}
	ref, ok, err := i.window.Lookup(ctx, key)
	if err != nil {
		i.logger.Warn("Failed to look up dedupe window", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	rec, err := i.store.Record(ctx, ref.ProductID, ref.RecordID)
	if err != nil {
		var notFound ledger.ErrRecordNotFound
		if !errors.As(err, &notFound) {
			i.logger.Warn("Failed to load deduplicated record", "product_id", ref.ProductID, "record_id", ref.RecordID, "error", err)
		}
		return nil
	}
	return rec
}

func (i *Ingestor) remember(ctx context.Context, key string, rec *ledger.Record) {
	if i.window == nil {
		return
	}
	if err := i.window.Remember(ctx, key, telemetry.RecordRef{ProductID: rec.ProductID, RecordID: rec.RecordID}); err != nil {
		i.logger.Warn("Failed to remember sample", "key", key, "error", err)
	}
}

// cacheLatest stores a freshly appended sample as the device's latest reading
func (i *Ingestor) cacheLatest(ctx context.Context, r telemetry.Reading, rec *ledger.Record, excursion string) {
	if i.cache != nil {
		latest := telemetry.LatestReading{Reading: r, RecordID: rec.RecordID, Excursion: excursion, StoredAt: rec.Timestamp}
		if err := i.cache.Put(ctx, latest); err != nil {
			i.logger.Warn("Failed to cache latest reading", "device_id", r.DeviceID, "error", err)
		}
	}
}
