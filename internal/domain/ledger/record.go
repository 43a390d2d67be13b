// Package ledger defines the append-only provenance record, its sealing
// and hash chaining, the timeline view, and the store contract that keeps
// one ordered record stream per product.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/product"
)

// RecordType classifies a ledger record
type RecordType string

const (
	RecordTypeTransition RecordType = "transition"
	RecordTypeTelemetry  RecordType = "telemetry"
	RecordTypeCheckpoint RecordType = "checkpoint"
	RecordTypeCorrection RecordType = "correction"
)

// ParseRecordType checks s against the known record types
func ParseRecordType(s string) (RecordType, error) {
	switch t := RecordType(s); t {
	case RecordTypeTransition, RecordTypeTelemetry, RecordTypeCheckpoint, RecordTypeCorrection:
		return t, nil
	}
	return "", fmt.Errorf("unknown record type %q", s)
}

// Correctable reports whether records of type t may be suppressed.
// Transitions feed the lifecycle replay and corrections are audit facts,
// so neither can be withdrawn.
func (t RecordType) Correctable() bool {
	return t == RecordTypeTelemetry || t == RecordTypeCheckpoint
}

// Record is the immutable unit of the ledger. Deleted and CorrectedBy are
// derived at read time from later correction records and never stored on
// the record itself.
type Record struct {
	ProductID      string          `json:"product_id"`
	RecordID       int64           `json:"record_id"`
	Type           RecordType      `json:"record_type"`
	ActorID        string          `json:"actor_id"`
	ActorRole      actor.Role      `json:"actor_role"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      time.Time       `json:"timestamp"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"` // Caller-supplied, advisory only
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	PrevHash       string          `json:"prev_hash"`
	Hash           string          `json:"hash"`

	Deleted     bool  `json:"is_deleted"`
	CorrectedBy int64 `json:"corrected_by,omitempty"`
}

// TransitionPayload is the payload of a transition record
type TransitionPayload = product.Change

// TelemetryPayload is the payload of a telemetry record
type TelemetryPayload struct {
	DeviceID    string    `json:"device_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	ObservedAt  time.Time `json:"observed_at"`
	Excursion   string    `json:"excursion,omitempty"`
}

// CheckpointPayload is the payload of a logistics checkpoint record
type CheckpointPayload struct {
	Location string `json:"location"`
	Note     string `json:"note,omitempty"`
}

// CorrectionPayload is the payload of a correction record
type CorrectionPayload struct {
	TargetRecordID int64  `json:"target_record_id"`
	Reason         string `json:"reason,omitempty"`
}

// Input is a record before the ledger assigns its id, timestamp and hash
type Input struct {
	ProductID      string
	Type           RecordType
	Actor          actor.Actor
	Payload        any
	ClaimedAt      *time.Time
	IdempotencyKey string
}

// DecodePayload unmarshals the record payload into v
func (r *Record) DecodePayload(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload of record %d: %w", r.Type, r.RecordID, err)
	}
	return nil
}

// Actor returns the identity that appended the record
func (r *Record) Actor() actor.Actor {
	return actor.Actor{ID: r.ActorID, Role: r.ActorRole}
}

// Clone returns a copy that shares no mutable state with r
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Payload = append(json.RawMessage(nil), r.Payload...)
	if r.ClaimedAt != nil {
		t := *r.ClaimedAt
		c.ClaimedAt = &t
	}
	return &c
}

// Transitions extracts the applied lifecycle changes from records, in the
// order given, skipping suppressed records.
func Transitions(records []*Record) ([]product.AppliedChange, error) {
	var changes []product.AppliedChange
	for _, r := range records {
		if r.Type != RecordTypeTransition || r.Deleted {
			continue
		}
		var c TransitionPayload
		if err := r.DecodePayload(&c); err != nil {
			return nil, err
		}
		changes = append(changes, product.AppliedChange{Change: c, Actor: r.Actor(), At: r.Timestamp})
	}
	return changes, nil
}
