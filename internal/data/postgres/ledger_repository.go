package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/platform/persistence"
)

const (
	ensureHeadQuery = `
		INSERT INTO ledger_heads (product_id)
		VALUES ($1)
		ON CONFLICT (product_id) DO NOTHING
	`

	lockHeadQuery = `
		SELECT last_record_id, last_timestamp, head_hash
		FROM ledger_heads
		WHERE product_id = $1
		FOR UPDATE
	`

	advanceHeadQuery = `
		UPDATE ledger_heads
		SET last_record_id = $1, last_timestamp = $2, head_hash = $3, updated_at = $4
		WHERE product_id = $5 AND last_record_id = $6
	`

	insertRecordQuery = `
		INSERT INTO ledger_records (product_id, record_id, record_type, actor_id, actor_role, payload,
			recorded_at, claimed_at, idempotency_key, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	recordColumns = `r.product_id, r.record_id, r.record_type, r.actor_id, r.actor_role, r.payload,
		r.recorded_at, r.claimed_at, r.idempotency_key, r.prev_hash, r.hash, s.correction_id`

	recordJoin = `
		FROM ledger_records r
		LEFT JOIN ledger_suppressions s ON s.product_id = r.product_id AND s.record_id = r.record_id
	`

	selectRecordsQuery = `
		SELECT ` + recordColumns + recordJoin + `
		WHERE r.product_id = $1
		ORDER BY r.record_id ASC
	`

	selectRecordQuery = `
		SELECT ` + recordColumns + recordJoin + `
		WHERE r.product_id = $1 AND r.record_id = $2
	`

	selectRecordByKeyQuery = `
		SELECT ` + recordColumns + recordJoin + `
		WHERE r.product_id = $1 AND r.idempotency_key = $2
	`

	insertSuppressionQuery = `
		INSERT INTO ledger_suppressions (product_id, record_id, correction_id)
		VALUES ($1, $2, $3)
	`

	recentlyUpdatedQuery = `
		SELECT product_id
		FROM ledger_heads
		WHERE updated_at >= $1 AND last_record_id > 0
		ORDER BY updated_at ASC, product_id ASC
		LIMIT $2
	`

	ledgerSuppressionsPKey = "ledger_suppressions_pkey"
	ledgerIdempotencyIndex = "ledger_records_idempotency_key"
)

// RecordRepository persists product record streams and their heads
type RecordRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRecordRepository creates a record repository over q
func NewRecordRepository(logger *slog.Logger, q persistence.Querier) *RecordRepository {
	return &RecordRepository{
		querier: q,
		logger:  logger,
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *RecordRepository) WithTx(tx pgx.Tx) *RecordRepository {
	return &RecordRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// LockHead creates the head row of productID if needed and locks it until
// the surrounding transaction ends. All writers of a product serialize here.
func (r *RecordRepository) LockHead(ctx context.Context, productID string) (ledger.Head, error) {
	if _, err := r.querier.Exec(ctx, ensureHeadQuery, productID); err != nil {
		r.logger.Error("Failed to create ledger head", "product_id", productID, "error", err)
		return ledger.Head{}, fmt.Errorf("failed to create ledger head: %w", err)
	}

	var (
		lastTimestamp *time.Time
		head          = ledger.Head{ProductID: productID}
	)
	err := r.querier.QueryRow(ctx, lockHeadQuery, productID).Scan(&head.LastRecordID, &lastTimestamp, &head.Hash)
	if err != nil {
		r.logger.Error("Failed to lock ledger head", "product_id", productID, "error", err)
		return ledger.Head{}, fmt.Errorf("failed to lock ledger head: %w", err)
	}
	if lastTimestamp != nil {
		head.LastTimestamp = lastTimestamp.UTC()
	}

	return head, nil
}

// Insert appends rec and moves the head from prev to rec. The head update
// is conditional on prev so a stale writer can never fork the chain.
func (r *RecordRepository) Insert(ctx context.Context, prev ledger.Head, rec *ledger.Record) error {
	_, err := r.querier.Exec(ctx, insertRecordQuery,
		rec.ProductID,
		rec.RecordID,
		string(rec.Type),
		rec.ActorID,
		string(rec.ActorRole),
		rec.Payload,
		rec.Timestamp,
		rec.ClaimedAt,
		nullString(rec.IdempotencyKey),
		rec.PrevHash,
		rec.Hash,
	)
	if err != nil {
		if isUniqueViolation(err, ledgerIdempotencyIndex) {
			return shared.ErrInvalidInput{Field: "idempotency_key", Reason: "already used"}
		}
		r.logger.Error("Failed to insert ledger record",
			"product_id", rec.ProductID,
			"record_id", rec.RecordID,
			"error", err,
		)
		return fmt.Errorf("failed to insert ledger record: %w", err)
	}

	result, err := r.querier.Exec(ctx, advanceHeadQuery,
		rec.RecordID,
		rec.Timestamp,
		rec.Hash,
		rec.Timestamp,
		rec.ProductID,
		prev.LastRecordID,
	)
	if err != nil {
		r.logger.Error("Failed to advance ledger head", "product_id", rec.ProductID, "error", err)
		return fmt.Errorf("failed to advance ledger head: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrChainBroken{ProductID: rec.ProductID, RecordID: rec.RecordID, Reason: "head moved concurrently"}
	}

	return nil
}

// Suppress records that correctionID withdraws targetID
func (r *RecordRepository) Suppress(ctx context.Context, productID string, targetID, correctionID int64) error {
	_, err := r.querier.Exec(ctx, insertSuppressionQuery, productID, targetID, correctionID)
	if err != nil {
		if isUniqueViolation(err, ledgerSuppressionsPKey) {
			return ledger.ErrAlreadyCorrected{ProductID: productID, RecordID: targetID}
		}
		r.logger.Error("Failed to suppress ledger record",
			"product_id", productID,
			"record_id", targetID,
			"error", err,
		)
		return fmt.Errorf("failed to suppress ledger record: %w", err)
	}
	return nil
}

// ListByProduct returns the stream of productID in record order
func (r *RecordRepository) ListByProduct(ctx context.Context, productID string) ([]*ledger.Record, error) {
	rows, err := r.querier.Query(ctx, selectRecordsQuery, productID)
	if err != nil {
		r.logger.Error("Failed to list ledger records", "product_id", productID, "error", err)
		return nil, fmt.Errorf("failed to list ledger records: %w", err)
	}
	defer rows.Close()

	var records []*ledger.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			r.logger.Error("Failed to scan ledger record", "product_id", productID, "error", err)
			return nil, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger records", "product_id", productID, "error", err)
		return nil, fmt.Errorf("error iterating over ledger records: %w", err)
	}

	return records, nil
}

// Get returns ErrRecordNotFound when the record does not exist
func (r *RecordRepository) Get(ctx context.Context, productID string, recordID int64) (*ledger.Record, error) {
	rec, err := scanRecord(r.querier.QueryRow(ctx, selectRecordQuery, productID, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrRecordNotFound{ProductID: productID, RecordID: recordID}
		}
		r.logger.Error("Failed to get ledger record",
			"product_id", productID,
			"record_id", recordID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get ledger record: %w", err)
	}
	return rec, nil
}

// GetByIdempotencyKey returns nil, nil when key was never used for productID
func (r *RecordRepository) GetByIdempotencyKey(ctx context.Context, productID, key string) (*ledger.Record, error) {
	rec, err := scanRecord(r.querier.QueryRow(ctx, selectRecordByKeyQuery, productID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get ledger record by idempotency key", "product_id", productID, "error", err)
		return nil, fmt.Errorf("failed to get ledger record by idempotency key: %w", err)
	}
	return rec, nil
}

// RecentlyUpdated lists products whose head moved at or after since
func (r *RecordRepository) RecentlyUpdated(ctx context.Context, since time.Time, limit int) ([]string, error) {
	rows, err := r.querier.Query(ctx, recentlyUpdatedQuery, since, limit)
	if err != nil {
		r.logger.Error("Failed to list recently updated products", "error", err)
		return nil, fmt.Errorf("failed to list recently updated products: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over recently updated products: %w", err)
	}

	return ids, nil
}

func scanRecord(row pgx.Row) (*ledger.Record, error) {
	var (
		rec          ledger.Record
		recordType   string
		role         string
		payload      []byte
		key          *string
		correctionID *int64
	)
	err := row.Scan(
		&rec.ProductID,
		&rec.RecordID,
		&recordType,
		&rec.ActorID,
		&role,
		&payload,
		&rec.Timestamp,
		&rec.ClaimedAt,
		&key,
		&rec.PrevHash,
		&rec.Hash,
		&correctionID,
	)
	if err != nil {
		return nil, err
	}

	rec.Type = ledger.RecordType(recordType)
	rec.ActorRole = actor.Role(role)
	rec.Payload = payload
	rec.Timestamp = rec.Timestamp.UTC()
	rec.ClaimedAt = utc(rec.ClaimedAt)
	if key != nil {
		rec.IdempotencyKey = *key
	}
	if correctionID != nil {
		rec.Deleted = true
		rec.CorrectedBy = *correctionID
	}
	return &rec, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}
