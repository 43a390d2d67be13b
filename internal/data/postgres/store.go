package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/outbox"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/platform/persistence"
)

// Store is the PostgreSQL ledger.Store. Each Update runs in one transaction
// that holds the product's ledger_heads row lock, so writers of a product
// are serialized while readers keep using MVCC snapshots.
type Store struct {
	pool     persistence.Pool
	products *ProductRepository
	records  *RecordRepository
	outbox   *OutboxRepository
	logger   *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// NewStore creates a store over pool
func NewStore(logger *slog.Logger, pool persistence.Pool) *Store {
	return &Store{
		pool:     pool,
		products: NewProductRepository(logger, pool),
		records:  NewRecordRepository(logger, pool),
		outbox:   NewOutboxRepository(logger, pool),
		logger:   logger,
	}
}

// Outbox returns the poller side of the transactional outbox
func (s *Store) Outbox() *OutboxRepository {
	return s.outbox
}

// Update implements ledger.Store
func (s *Store) Update(ctx context.Context, productID string, fn func(w ledger.Writer) error) error {
	var fnErr error
	err := persistence.ExecuteTx(ctx, s.pool, func(tx pgx.Tx) error {
		w := &txWriter{
			productID: productID,
			products:  s.products.WithTx(tx),
			records:   s.records.WithTx(tx),
			outbox:    s.outbox.WithTx(tx),
		}

		head, err := w.records.LockHead(ctx, productID)
		if err != nil {
			return err
		}
		w.head = head

		p, err := w.products.GetByID(ctx, productID)
		switch {
		case err == nil:
			w.product = p
		case !errors.Is(err, product.ErrProductNotFound{}):
			return err
		}

		fnErr = fn(w)
		return fnErr
	})
	if fnErr != nil {
		if err != fnErr {
			s.logger.Warn("Failed to roll back ledger update", "product_id", productID, "error", err)
		}
		return fnErr
	}
	return shared.NewStorageError("update product "+productID, err)
}

// GetProduct implements ledger.Reader
func (s *Store) GetProduct(ctx context.Context, productID string) (*product.Product, error) {
	p, err := s.products.GetByID(ctx, productID)
	return p, shared.NewStorageError("get product", err)
}

// GetProductByRFID implements ledger.Reader
func (s *Store) GetProductByRFID(ctx context.Context, tag string) (*product.Product, error) {
	p, err := s.products.GetByRFID(ctx, tag)
	return p, shared.NewStorageError("get product by rfid", err)
}

// Records implements ledger.Reader
func (s *Store) Records(ctx context.Context, productID string) ([]*ledger.Record, error) {
	records, err := s.records.ListByProduct(ctx, productID)
	if err != nil {
		return nil, shared.NewStorageError("list records", err)
	}
	if records == nil {
		records = []*ledger.Record{}
	}
	return records, nil
}

// Record implements ledger.Reader
func (s *Store) Record(ctx context.Context, productID string, recordID int64) (*ledger.Record, error) {
	rec, err := s.records.Get(ctx, productID, recordID)
	return rec, shared.NewStorageError("get record", err)
}

// RecentlyUpdated implements ledger.Reader
func (s *Store) RecentlyUpdated(ctx context.Context, since time.Time, limit int) ([]string, error) {
	ids, err := s.records.RecentlyUpdated(ctx, since, limit)
	return ids, shared.NewStorageError("list recently updated", err)
}

// txWriter is the ledger.Writer of one Update transaction. Statements run
// on the transaction as they are issued; the commit or rollback of
// ExecuteTx decides whether they become visible.
type txWriter struct {
	productID string
	product   *product.Product
	head      ledger.Head
	products  *ProductRepository
	records   *RecordRepository
	outbox    *OutboxRepository
}

func (w *txWriter) Product() *product.Product { return w.product.Clone() }

func (w *txWriter) Head() ledger.Head { return w.head }

func (w *txWriter) RecordByIdempotencyKey(ctx context.Context, key string) (*ledger.Record, error) {
	if key == "" {
		return nil, nil
	}
	rec, err := w.records.GetByIdempotencyKey(ctx, w.productID, key)
	return rec, shared.NewStorageError("get record by idempotency key", err)
}

func (w *txWriter) Record(ctx context.Context, recordID int64) (*ledger.Record, error) {
	rec, err := w.records.Get(ctx, w.productID, recordID)
	return rec, shared.NewStorageError("get record", err)
}

func (w *txWriter) CreateProduct(ctx context.Context, p *product.Product) error {
	if w.product != nil {
		return product.ErrDuplicateProduct{ProductID: p.ID}
	}
	if p.ID != w.productID {
		return shared.ErrInvalidInput{Field: "id", Reason: "does not match the locked product"}
	}
	if err := w.products.Create(ctx, p); err != nil {
		return shared.NewStorageError("create product", err)
	}
	w.product = p.Clone()
	return nil
}

func (w *txWriter) SaveProduct(ctx context.Context, p *product.Product) error {
	if w.product == nil {
		return product.ErrProductNotFound{ProductID: p.ID}
	}
	if err := w.products.Update(ctx, p); err != nil {
		return shared.NewStorageError("save product", err)
	}
	w.product = p.Clone()
	return nil
}

func (w *txWriter) Append(ctx context.Context, rec *ledger.Record) error {
	if rec.ProductID != w.productID || rec.RecordID != w.head.LastRecordID+1 || rec.PrevHash != w.head.Hash {
		return ledger.ErrChainBroken{ProductID: rec.ProductID, RecordID: rec.RecordID, Reason: "record does not extend the head"}
	}
	if err := w.records.Insert(ctx, w.head, rec); err != nil {
		return shared.NewStorageError("append record", err)
	}

	msg, err := outbox.NewMessage(rec)
	if err != nil {
		return shared.NewStorageError("outbox", err)
	}
	if err := w.outbox.Create(ctx, msg); err != nil {
		return shared.NewStorageError("outbox", err)
	}

	w.head = w.head.Advance(rec)
	return nil
}

func (w *txWriter) Suppress(ctx context.Context, targetID, correctionID int64) error {
	target, err := w.Record(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Deleted {
		return ledger.ErrAlreadyCorrected{ProductID: w.productID, RecordID: targetID}
	}
	return shared.NewStorageError("suppress record", w.records.Suppress(ctx, w.productID, targetID, correctionID))
}
