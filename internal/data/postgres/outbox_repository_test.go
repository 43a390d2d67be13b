package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/provenance-ledger/internal/domain/outbox"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepository_WithTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOutboxRepository(newTestLogger(), nil)

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	txRepo := repo.WithTx(tx)
	assert.Equal(t, tx, txRepo.querier)
	assert.Equal(t, repo.logger, txRepo.logger)
}

func TestOutboxRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOutboxRepository(newTestLogger(), mock)
	msg := &outbox.Message{
		ProductID: "p-1",
		RecordID:  4,
		Payload:   []byte(`{"record_id":4}`),
		Status:    shared.OutboxStatusPending,
		CreatedAt: time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta(insertOutboxQuery)).
		WithArgs(msg.ProductID, msg.RecordID, msg.Payload, string(msg.Status), 0, msg.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(17)))

	require.NoError(t, repo.Create(ctx, msg))
	assert.Equal(t, int64(17), msg.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_GetPending(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOutboxRepository(newTestLogger(), mock)
	query := regexp.QuoteMeta(selectPendingOutboxQuery)
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "product_id", "record_id", "payload", "status", "attempts", "created_at", "last_attempt_at"}).
			AddRow(int64(1), "p-1", int64(1), []byte(`{}`), "PENDING", 0, now, nil).
			AddRow(int64(2), "p-2", int64(1), []byte(`{}`), "PENDING", 2, now, &now)
		mock.ExpectQuery(query).WithArgs(string(shared.OutboxStatusPending), 10).WillReturnRows(rows)

		messages, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, shared.OutboxStatusPending, messages[0].Status)
		assert.Nil(t, messages[0].LastAttemptAt)
		assert.Equal(t, 2, messages[1].Attempts)
		assert.NotNil(t, messages[1].LastAttemptAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectQuery(query).WillReturnError(dbErr)

		messages, err := repo.GetPending(ctx, 10)
		assert.Nil(t, messages)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOutboxRepository(newTestLogger(), mock)
	query := regexp.QuoteMeta(updateOutboxStatusQuery)

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(string(shared.OutboxStatusProcessed), pgxmock.AnyArg(), int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.UpdateStatus(ctx, 1, shared.OutboxStatusProcessed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(string(shared.OutboxStatusProcessed), pgxmock.AnyArg(), int64(99)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(ctx, 99, shared.OutboxStatusProcessed)
		assert.ErrorAs(t, err, &outbox.ErrMessageNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_IncrementAttempts(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOutboxRepository(newTestLogger(), mock)

	mock.ExpectExec(regexp.QuoteMeta(incrementOutboxAttemptsQuery)).WithArgs(pgxmock.AnyArg(), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.IncrementAttempts(ctx, 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}
