package service

import (
	"context"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/provenance-ledger/internal/provenance"
)

// ProductService defines registry and lifecycle operations
type ProductService interface {
	// RegisterProduct creates a product in state created owned by a.
	// A repeated token returns the product created by the first request.
	RegisterProduct(ctx context.Context, a actor.Actor, attrs product.Attributes, token string) (*product.Product, error)

	// GetProduct returns the product if a is related to it
	GetProduct(ctx context.Context, a actor.Actor, productID string) (*product.Product, error)

	// GetProductByRFID resolves a product by its bound tag
	GetProductByRFID(ctx context.Context, a actor.Actor, tag string) (*product.Product, error)

	// BindRFID binds tag to the product, moving it to bound
	BindRFID(ctx context.Context, a actor.Actor, productID, tag, token string) (*product.Product, *ledger.Record, error)

	// Transition applies a lifecycle event
	Transition(ctx context.Context, a actor.Actor, productID string, ev product.Event, opts provenance.TransitionOptions) (*product.Product, *ledger.Record, error)

	// VerifyProduct checks the hash chain and replays the lifecycle
	VerifyProduct(ctx context.Context, a actor.Actor, productID string) (*provenance.Verification, error)
}

// RecordService defines the append and correction operations
type RecordService interface {
	RecordCheckpoint(ctx context.Context, a actor.Actor, productID string, in provenance.CheckpointInput, token string) (*ledger.Record, error)

	// IngestTelemetry records a sample. Redelivery returns the stored record.
	IngestTelemetry(ctx context.Context, a actor.Actor, reading telemetry.Reading) (*ledger.Record, error)

	// CorrectRecord suppresses a telemetry or checkpoint record
	CorrectRecord(ctx context.Context, a actor.Actor, productID string, recordID int64, reason, token string) (*ledger.Record, error)
}

// TraceService defines the read-only query operations
type TraceService interface {
	Timeline(ctx context.Context, a actor.Actor, productID string, opts ledger.TimelineOptions) ([]*ledger.Record, error)
	Trace(ctx context.Context, a actor.Actor, productID string, opts ledger.TimelineOptions) (*provenance.Trace, error)
	LatestReading(ctx context.Context, a actor.Actor, deviceID string) (*telemetry.LatestReading, error)

	// DeviceHistory returns one page of a device's archived records and the total count
	DeviceHistory(ctx context.Context, a actor.Actor, deviceID string, page, perPage int) ([]*ledger.Record, int64, error)
}
