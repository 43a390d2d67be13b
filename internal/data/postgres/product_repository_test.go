package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var productRowColumns = []string{
	"id", "name", "category", "description", "batch_number", "producer_id", "production_date", "expiry_date",
	"created_at", "state", "rfid_tag", "custodian_id", "consumer_id", "version", "updated_at",
}

func testProduct(now time.Time) *product.Product {
	return &product.Product{
		ID:          "p-1",
		Name:        "Olive oil",
		Category:    "food",
		ProducerID:  "prod-1",
		CreatedAt:   now,
		State:       product.StateCreated,
		CustodianID: "prod-1",
		Version:     1,
		UpdatedAt:   now,
	}
}

func productRow(p *product.Product) *pgxmock.Rows {
	return pgxmock.NewRows(productRowColumns).AddRow(
		p.ID, p.Name, p.Category, p.Description, p.BatchNumber, p.ProducerID, nil, nil,
		p.CreatedAt, string(p.State), nil, p.CustodianID, p.ConsumerID, p.Version, p.UpdatedAt,
	)
}

func TestProductRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(newTestLogger(), mock)
	p := testProduct(time.Now().UTC())
	query := regexp.QuoteMeta(insertProductQuery)

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(p.ID, p.Name, p.Category, p.Description, p.BatchNumber, p.ProducerID,
				pgxmock.AnyArg(), pgxmock.AnyArg(), p.CreatedAt, string(p.State), pgxmock.AnyArg(),
				p.CustodianID, p.ConsumerID, p.Version, p.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, p))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate id", func(t *testing.T) {
		mock.ExpectExec(query).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: productsPKey})

		err := repo.Create(ctx, p)
		assert.ErrorIs(t, err, product.ErrDuplicateProduct{ProductID: "p-1"})
		assert.Equal(t, shared.KindDuplicateID, shared.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(query).WillReturnError(dbErr)

		err := repo.Create(ctx, p)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to create product")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepository_Update(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(newTestLogger(), mock)
	p := testProduct(time.Now().UTC())
	p.RFIDTag = "TAG-1"
	query := regexp.QuoteMeta(updateProductQuery)

	t.Run("success", func(t *testing.T) {
		tag := "TAG-1"
		mock.ExpectExec(query).
			WithArgs(string(p.State), &tag, p.CustodianID, p.ConsumerID, p.Version, p.UpdatedAt, p.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.Update(ctx, p))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, p)
		assert.ErrorIs(t, err, product.ErrProductNotFound{ProductID: "p-1"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tag bound elsewhere", func(t *testing.T) {
		mock.ExpectExec(query).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: productsRFIDTagIndex})

		err := repo.Update(ctx, p)
		var dup product.ErrDuplicateRFID
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "TAG-1", dup.Tag)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(newTestLogger(), mock)
	expected := testProduct(time.Now().UTC())
	query := regexp.QuoteMeta(selectProductByIDQuery)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("p-1").WillReturnRows(productRow(expected))

		p, err := repo.GetByID(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, expected, p)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("p-2").WillReturnError(pgx.ErrNoRows)

		p, err := repo.GetByID(ctx, "p-2")
		assert.Nil(t, p)
		var notFound product.ErrProductNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "p-2", notFound.ProductID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("some db error")
		mock.ExpectQuery(query).WithArgs("p-1").WillReturnError(dbErr)

		p, err := repo.GetByID(ctx, "p-1")
		assert.Nil(t, p)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to get product")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepository_GetByRFID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(newTestLogger(), mock)
	query := regexp.QuoteMeta(selectProductByRFIDQuery)

	mock.ExpectQuery(query).WithArgs("TAG-9").WillReturnError(pgx.ErrNoRows)

	p, err := repo.GetByRFID(ctx, "TAG-9")
	assert.Nil(t, p)
	assert.ErrorAs(t, err, &product.ErrRFIDNotBound{})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
