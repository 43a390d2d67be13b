package provenance

import (
	"context"
	"log/slog"
	"strings"

	"github.com/provenance-ledger/internal/domain/access"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/domain/telemetry"
)

// Trace is the composed read view of one product
type Trace struct {
	Product      *product.Product `json:"product"`
	CurrentState product.State    `json:"current_state"`
	Timeline     []*ledger.Record `json:"timeline"`
}

// Tracer serves read-only projections over the ledger and the telemetry
// caches. Nothing it returns outlives the request.
type Tracer struct {
	store   ledger.Store
	gate    *Gate
	cache   telemetry.ReadingCache
	archive ledger.Archive
	logger  *slog.Logger
}

func NewTracer(store ledger.Store, gate *Gate, cache telemetry.ReadingCache, archive ledger.Archive, logger *slog.Logger) *Tracer {
	return &Tracer{store: store, gate: gate, cache: cache, archive: archive, logger: logger}
}

// Trace composes the product, its current state and its timeline. The
// state is replayed from the same record snapshot the timeline is built
// from, so the two always agree.
func (t *Tracer) Trace(ctx context.Context, a actor.Actor, productID string, opts ledger.TimelineOptions) (*Trace, error) {
	if !a.Verified() {
		return nil, access.ErrUnauthenticated{}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p, err := t.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := t.gate.Authorize(a, access.ActionQueryTimeline, p); err != nil {
		return nil, err
	}
	records, err := t.store.Records(ctx, productID)
	if err != nil {
		return nil, err
	}

	changes, err := ledger.Transitions(records)
	if err != nil {
		return nil, err
	}
	current, err := product.Replay(p, changes)
	if err != nil {
		t.logger.Error("Failed to replay product lifecycle", "product_id", productID, "error", err)
		return nil, err
	}

	return &Trace{
		Product:      current,
		CurrentState: current.State,
		Timeline:     ledger.NewTimeline(productID, records, opts).Collect(),
	}, nil
}

// LatestReading returns the most recent live sample of a device, authorized
// against the product the sample belongs to
func (t *Tracer) LatestReading(ctx context.Context, a actor.Actor, deviceID string) (*telemetry.LatestReading, error) {
	if !a.Verified() {
		return nil, access.ErrUnauthenticated{}
	}
	deviceID = strings.TrimSpace(deviceID)
	if t.cache == nil {
		return nil, ErrNoReading{DeviceID: deviceID}
	}
	latest, err := t.cache.Latest(ctx, deviceID)
	if err != nil {
		return nil, shared.NewStorageError("latest reading", err)
	}
	if latest == nil {
		return nil, ErrNoReading{DeviceID: deviceID}
	}
	p, err := t.store.GetProduct(ctx, latest.ProductID)
	if err != nil {
		return nil, err
	}
	if err := t.gate.Authorize(a, access.ActionGetProduct, p); err != nil {
		return nil, err
	}
	return latest, nil
}

// DeviceHistory pages through the archived records of a device. Only
// admins may audit across products.
func (t *Tracer) DeviceHistory(ctx context.Context, a actor.Actor, deviceID string, page, perPage int) ([]*ledger.Record, int64, error) {
	if err := t.gate.Authorize(a, access.ActionAuditDevice, nil); err != nil {
		return nil, 0, err
	}
	if t.archive == nil {
		return []*ledger.Record{}, 0, nil
	}
	offset := (page - 1) * perPage

	records, err := t.archive.ListByDevice(ctx, deviceID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := t.archive.CountByDevice(ctx, deviceID)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
