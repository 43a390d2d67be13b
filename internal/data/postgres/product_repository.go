package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/platform/persistence"
)

const (
	productColumns = `id, name, category, description, batch_number, producer_id, production_date, expiry_date,
		created_at, state, rfid_tag, custodian_id, consumer_id, version, updated_at`

	insertProductQuery = `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	updateProductQuery = `
		UPDATE products
		SET state = $1, rfid_tag = $2, custodian_id = $3, consumer_id = $4, version = $5, updated_at = $6
		WHERE id = $7
	`

	selectProductByIDQuery = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
	`

	selectProductByRFIDQuery = `
		SELECT ` + productColumns + `
		FROM products
		WHERE rfid_tag = $1
	`

	uniqueViolation      = "23505"
	productsPKey         = "products_pkey"
	productsRFIDTagIndex = "products_rfid_tag_key"
)

// ProductRepository persists the current-state row of each product
type ProductRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewProductRepository creates a product repository over q
func NewProductRepository(logger *slog.Logger, q persistence.Querier) *ProductRepository {
	return &ProductRepository{
		querier: q,
		logger:  logger,
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *ProductRepository) WithTx(tx pgx.Tx) *ProductRepository {
	return &ProductRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a newly registered product
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.querier.Exec(ctx, insertProductQuery,
		p.ID,
		p.Name,
		p.Category,
		p.Description,
		p.BatchNumber,
		p.ProducerID,
		p.ProductionDate,
		p.ExpiryDate,
		p.CreatedAt,
		string(p.State),
		nullString(p.RFIDTag),
		p.CustodianID,
		p.ConsumerID,
		p.Version,
		p.UpdatedAt,
	)
	if err != nil {
		if mapped := mapProductConflict(err, p); mapped != nil {
			return mapped
		}
		r.logger.Error("Failed to create product", "product_id", p.ID, "error", err)
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update writes the lifecycle projection of p. Identity and attributes are
// immutable after registration and are never rewritten.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	result, err := r.querier.Exec(ctx, updateProductQuery,
		string(p.State),
		nullString(p.RFIDTag),
		p.CustodianID,
		p.ConsumerID,
		p.Version,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if mapped := mapProductConflict(err, p); mapped != nil {
			return mapped
		}
		r.logger.Error("Failed to update product", "product_id", p.ID, "error", err)
		return fmt.Errorf("failed to update product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return product.ErrProductNotFound{ProductID: p.ID}
	}

	return nil
}

// GetByID returns ErrProductNotFound when the product is not registered
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	p, err := scanProduct(r.querier.QueryRow(ctx, selectProductByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrProductNotFound{ProductID: id}
		}
		r.logger.Error("Failed to get product by ID", "product_id", id, "error", err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetByRFID returns ErrRFIDNotBound when no product carries tag
func (r *ProductRepository) GetByRFID(ctx context.Context, tag string) (*product.Product, error) {
	p, err := scanProduct(r.querier.QueryRow(ctx, selectProductByRFIDQuery, tag))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrRFIDNotBound{Tag: tag}
		}
		r.logger.Error("Failed to get product by RFID tag", "rfid_tag", tag, "error", err)
		return nil, fmt.Errorf("failed to get product by rfid tag: %w", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var (
		p       product.Product
		state   string
		rfidTag *string
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.Description,
		&p.BatchNumber,
		&p.ProducerID,
		&p.ProductionDate,
		&p.ExpiryDate,
		&p.CreatedAt,
		&state,
		&rfidTag,
		&p.CustodianID,
		&p.ConsumerID,
		&p.Version,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.State = product.State(state)
	if rfidTag != nil {
		p.RFIDTag = *rfidTag
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.ProductionDate = utc(p.ProductionDate)
	p.ExpiryDate = utc(p.ExpiryDate)
	return &p, nil
}

func mapProductConflict(err error, p *product.Product) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case productsPKey:
		return product.ErrDuplicateProduct{ProductID: p.ID}
	case productsRFIDTagIndex:
		return product.ErrDuplicateRFID{Tag: p.RFIDTag}
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
