package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
)

// DefaultArchiveCollection is used when no collection name is configured
const DefaultArchiveCollection = "provenance_records"

// archiveDocument is the stored shape of a mirrored record. BSON dates only
// keep milliseconds, so the sealed timestamps are also kept in microseconds
// to let archived copies re-verify against their hashes.
type archiveDocument struct {
	ID              string     `bson:"_id"`
	ProductID       string     `bson:"product_id"`
	RecordID        int64      `bson:"record_id"`
	Type            string     `bson:"record_type"`
	ActorID         string     `bson:"actor_id"`
	ActorRole       string     `bson:"actor_role"`
	DeviceID        string     `bson:"device_id,omitempty"`
	Payload         string     `bson:"payload"`
	Timestamp       time.Time  `bson:"timestamp"`
	TimestampMicros int64      `bson:"timestamp_us"`
	ClaimedAt       *time.Time `bson:"claimed_at,omitempty"`
	ClaimedAtMicros *int64     `bson:"claimed_at_us,omitempty"`
	IdempotencyKey  string     `bson:"idempotency_key,omitempty"`
	PrevHash        string     `bson:"prev_hash"`
	Hash            string     `bson:"hash"`
	ArchivedAt      time.Time  `bson:"archived_at"`
}

// ArchiveRepository implements ledger.Archive on a MongoDB collection
type ArchiveRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

var _ ledger.Archive = (*ArchiveRepository)(nil)

// NewArchiveRepository creates an archive over the named collection of db
func NewArchiveRepository(logger *slog.Logger, db *mongo.Database, collection string) *ArchiveRepository {
	if collection == "" {
		collection = DefaultArchiveCollection
	}
	return &ArchiveRepository{
		collection: db.Collection(collection),
		logger:     logger,
	}
}

// EnsureIndexes creates the device history index
func (r *ArchiveRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "timestamp_us", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().
			SetName("device_history").
			SetPartialFilterExpression(bson.M{"device_id": bson.M{"$exists": true}}),
	})
	if err != nil {
		r.logger.Error("Failed to create archive indexes", "error", err)
		return fmt.Errorf("failed to create archive indexes: %w", err)
	}
	return nil
}

// Put mirrors rec. The document id is derived from the record's position,
// so mirroring the same record twice leaves a single copy.
func (r *ArchiveRepository) Put(ctx context.Context, rec *ledger.Record) error {
	doc, err := newArchiveDocument(rec)
	if err != nil {
		return err
	}

	_, err = r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Debug("Record already archived", "product_id", rec.ProductID, "record_id", rec.RecordID)
			return nil
		}
		r.logger.Error("Failed to archive record",
			"product_id", rec.ProductID,
			"record_id", rec.RecordID,
			"error", err)
		return fmt.Errorf("failed to archive record: %w", err)
	}

	return nil
}

// ListByDevice returns a page of a device's telemetry records, oldest first
func (r *ArchiveRepository) ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]*ledger.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp_us", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"device_id": deviceID}, opts)
	if err != nil {
		r.logger.Error("Failed to get archived records",
			"device_id", deviceID,
			"error", err)
		return nil, fmt.Errorf("failed to get archived records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []archiveDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode archived records",
			"device_id", deviceID,
			"error", err)
		return nil, fmt.Errorf("failed to decode archived records: %w", err)
	}

	records := make([]*ledger.Record, 0, len(docs))
	for i := range docs {
		records = append(records, docs[i].record())
	}
	return records, nil
}

// CountByDevice counts the archived telemetry records of a device
func (r *ArchiveRepository) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"device_id": deviceID})
	if err != nil {
		r.logger.Error("Failed to count archived records",
			"device_id", deviceID,
			"error", err)
		return 0, fmt.Errorf("failed to count archived records: %w", err)
	}
	return count, nil
}

func newArchiveDocument(rec *ledger.Record) (*archiveDocument, error) {
	doc := &archiveDocument{
		ID:              rec.ProductID + ":" + strconv.FormatInt(rec.RecordID, 10),
		ProductID:       rec.ProductID,
		RecordID:        rec.RecordID,
		Type:            string(rec.Type),
		ActorID:         rec.ActorID,
		ActorRole:       string(rec.ActorRole),
		Payload:         string(rec.Payload),
		Timestamp:       rec.Timestamp,
		TimestampMicros: rec.Timestamp.UnixMicro(),
		ClaimedAt:       rec.ClaimedAt,
		IdempotencyKey:  rec.IdempotencyKey,
		PrevHash:        rec.PrevHash,
		Hash:            rec.Hash,
		ArchivedAt:      time.Now().UTC(),
	}
	if rec.ClaimedAt != nil {
		us := rec.ClaimedAt.UnixMicro()
		doc.ClaimedAtMicros = &us
	}

	if rec.Type == ledger.RecordTypeTelemetry {
		var p ledger.TelemetryPayload
		if err := rec.DecodePayload(&p); err != nil {
			return nil, err
		}
		doc.DeviceID = p.DeviceID
	}
	return doc, nil
}

func (d *archiveDocument) record() *ledger.Record {
	rec := &ledger.Record{
		ProductID:      d.ProductID,
		RecordID:       d.RecordID,
		Type:           ledger.RecordType(d.Type),
		ActorID:        d.ActorID,
		ActorRole:      actor.Role(d.ActorRole),
		Payload:        []byte(d.Payload),
		Timestamp:      time.UnixMicro(d.TimestampMicros).UTC(),
		IdempotencyKey: d.IdempotencyKey,
		PrevHash:       d.PrevHash,
		Hash:           d.Hash,
	}
	if d.ClaimedAtMicros != nil {
		c := time.UnixMicro(*d.ClaimedAtMicros).UTC()
		rec.ClaimedAt = &c
	}
	return rec
}
