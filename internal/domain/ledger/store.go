package ledger

import (
	"context"
	"time"

	"github.com/provenance-ledger/internal/domain/product"
)

// Reader serves queries. Reads never wait on a product's write lock and
// observe each product either before or after a concurrent Update.
type Reader interface {
	GetProduct(ctx context.Context, productID string) (*product.Product, error)
	GetProductByRFID(ctx context.Context, tag string) (*product.Product, error)
	// Records returns the full stream in recordID order, suppressed records
	// included and flagged.
	Records(ctx context.Context, productID string) ([]*Record, error)
	Record(ctx context.Context, productID string, recordID int64) (*Record, error)
	// RecentlyUpdated lists products changed at or after since, oldest first
	RecentlyUpdated(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// Writer is the view of one product handed to an Update callback. It is
// only valid for the duration of the callback.
type Writer interface {
	// Product is the locked product, or nil if it is not registered yet
	Product() *product.Product
	Head() Head
	// RecordByIdempotencyKey returns nil, nil when key was never used
	RecordByIdempotencyKey(ctx context.Context, key string) (*Record, error)
	Record(ctx context.Context, recordID int64) (*Record, error)
	CreateProduct(ctx context.Context, p *product.Product) error
	SaveProduct(ctx context.Context, p *product.Product) error
	// Append persists a sealed record and advances the head
	Append(ctx context.Context, rec *Record) error
	// Suppress marks target as withdrawn by correctionID
	Suppress(ctx context.Context, targetID, correctionID int64) error
}

// Store keeps one append-only record stream per product plus the
// product's current-state row.
type Store interface {
	Reader
	// Update runs fn while holding productID's write lock. Writes made
	// through the Writer become visible atomically when fn returns nil and
	// are discarded otherwise.
	Update(ctx context.Context, productID string, fn func(w Writer) error) error
}

// Archive is an eventually consistent mirror of committed records used for
// cross-product queries.
type Archive interface {
	Put(ctx context.Context, rec *Record) error
	ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]*Record, error)
	CountByDevice(ctx context.Context, deviceID string) (int64, error)
}
