// Package provenance composes the domain rules and a ledger.Store into the
// operations callers invoke: product registration, lifecycle transitions,
// record appends and corrections, telemetry ingestion and trace queries.
package provenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/domain/telemetry"
)

// Clock supplies the server time used for record timestamps
type Clock func() time.Time

// Options carry the collaborators that are optional or environment specific
type Options struct {
	Now     Clock
	Bounds  telemetry.Bounds
	Band    *telemetry.ExcursionBand
	Window  telemetry.DedupWindow
	Cache   telemetry.ReadingCache
	Limiter *telemetry.Limiter
	Archive ledger.Archive
}

// Core bundles the components sharing one store
type Core struct {
	Gate     *Gate
	Registry *Registry
	Ledger   *Ledger
	Machine  *Machine
	Ingestor *Ingestor
	Tracer   *Tracer
}

// New wires every component over store
func New(store ledger.Store, logger *slog.Logger, opts Options) *Core {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Bounds == (telemetry.Bounds{}) {
		opts.Bounds = telemetry.DefaultBounds()
	}

	gate := NewGate(logger.With("component", "gate"))
	return &Core{
		Gate:     gate,
		Registry: NewRegistry(store, gate, opts.Now, logger.With("component", "registry")),
		Ledger:   NewLedger(store, gate, opts.Now, logger.With("component", "ledger")),
		Machine:  NewMachine(store, gate, opts.Now, logger.With("component", "lifecycle")),
		Ingestor: NewIngestor(store, gate, opts, logger.With("component", "ingestor")),
		Tracer:   NewTracer(store, gate, opts.Cache, opts.Archive, logger.With("component", "tracer")),
	}
}

// existingRecord returns the record already stored under key for a request
// of type typ, or nil when key is unused. actorID is empty when any actor
// may legitimately repeat the request.
func existingRecord(ctx context.Context, w ledger.Writer, key string, typ ledger.RecordType, actorID string) (*ledger.Record, error) {
	if key == "" {
		return nil, nil
	}
	rec, err := w.RecordByIdempotencyKey(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Type != typ || (actorID != "" && rec.ActorID != actorID) {
		return nil, shared.ErrInvalidInput{Field: "idempotency_key", Reason: "already used for a different request"}
	}
	return rec, nil
}

// lockedProduct returns the product held by w or NotFound
func lockedProduct(w ledger.Writer, productID string) (*product.Product, error) {
	p := w.Product()
	if p == nil {
		return nil, product.ErrProductNotFound{ProductID: productID}
	}
	return p, nil
}

// sealAndAppend seals in after w's head and appends it
func sealAndAppend(ctx context.Context, w ledger.Writer, in ledger.Input, now time.Time) (*ledger.Record, error) {
	rec, err := ledger.Seal(w.Head(), in, now)
	if err != nil {
		return nil, err
	}
	if err := w.Append(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func actorAttrs(a actor.Actor) slog.Attr {
	return slog.Group("actor", "id", a.ID, "role", string(a.Role))
}
