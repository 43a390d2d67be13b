package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// encMode encodes hash pre-images with Core Deterministic Encoding so the
// same logical record always hashes to the same digest, regardless of how a
// store normalized the JSON payload.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ledger: CBOR encoder initialization failed: " + err.Error())
	}
}

// Head is the tail of a product's record stream
type Head struct {
	ProductID     string
	LastRecordID  int64
	LastTimestamp time.Time
	Hash          string
}

// Advance moves the head past rec
func (h Head) Advance(rec *Record) Head {
	return Head{
		ProductID:     rec.ProductID,
		LastRecordID:  rec.RecordID,
		LastTimestamp: rec.Timestamp,
		Hash:          rec.Hash,
	}
}

// Seal turns in into the next record after head. The record id is the next
// per-product sequence number and the timestamp never runs backwards, so
// (timestamp, recordID) order and recordID order coincide.
func Seal(head Head, in Input, now time.Time) (*Record, error) {
	payload, err := json.Marshal(in.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", in.Type, err)
	}

	ts := now.UTC().Truncate(time.Microsecond)
	if last := head.LastTimestamp.UTC(); ts.Before(last) {
		ts = last
	}

	var claimed *time.Time
	if in.ClaimedAt != nil {
		c := in.ClaimedAt.UTC()
		claimed = &c
	}

	rec := &Record{
		ProductID:      in.ProductID,
		RecordID:       head.LastRecordID + 1,
		Type:           in.Type,
		ActorID:        in.Actor.ID,
		ActorRole:      in.Actor.Role,
		Payload:        payload,
		Timestamp:      ts,
		ClaimedAt:      claimed,
		IdempotencyKey: in.IdempotencyKey,
		PrevHash:       head.Hash,
	}

	rec.Hash, err = ComputeHash(rec)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type hashPreimage struct {
	PrevHash  string `cbor:"1,keyasint"`
	ProductID string `cbor:"2,keyasint"`
	RecordID  int64  `cbor:"3,keyasint"`
	Type      string `cbor:"4,keyasint"`
	ActorID   string `cbor:"5,keyasint"`
	ActorRole string `cbor:"6,keyasint"`
	Timestamp int64  `cbor:"7,keyasint"` // Unix microseconds
	Payload   any    `cbor:"8,keyasint"`
}

// ComputeHash returns the hex BLAKE3 digest chaining r to its predecessor
func ComputeHash(r *Record) (string, error) {
	var payload any
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return "", fmt.Errorf("failed to canonicalize payload of record %d: %w", r.RecordID, err)
		}
	}

	data, err := encMode.Marshal(hashPreimage{
		PrevHash:  r.PrevHash,
		ProductID: r.ProductID,
		RecordID:  r.RecordID,
		Type:      string(r.Type),
		ActorID:   r.ActorID,
		ActorRole: string(r.ActorRole),
		Timestamp: r.Timestamp.UnixMicro(),
		Payload:   payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode hash pre-image of record %d: %w", r.RecordID, err)
	}

	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChain checks that records form an unbroken, untampered stream
// starting at record 1. Records must be in recordID order.
func VerifyChain(records []*Record) error {
	prev := ""
	for i, r := range records {
		want := int64(i + 1)
		if r.RecordID != want {
			return ErrChainBroken{ProductID: r.ProductID, RecordID: r.RecordID, Reason: fmt.Sprintf("expected record %d", want)}
		}
		if r.PrevHash != prev {
			return ErrChainBroken{ProductID: r.ProductID, RecordID: r.RecordID, Reason: "previous hash mismatch"}
		}
		h, err := ComputeHash(r)
		if err != nil {
			return ErrChainBroken{ProductID: r.ProductID, RecordID: r.RecordID, Reason: err.Error()}
		}
		if h != r.Hash {
			return ErrChainBroken{ProductID: r.ProductID, RecordID: r.RecordID, Reason: "content hash mismatch"}
		}
		prev = r.Hash
	}
	return nil
}

// MerkleRoot summarizes the record hashes of a stream. An odd node at any
// level is promoted unhashed. An empty stream has an empty root.
func MerkleRoot(records []*Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	level := make([][32]byte, len(records))
	for i, r := range records {
		b, err := hex.DecodeString(r.Hash)
		if err != nil || len(b) != 32 {
			return "", ErrChainBroken{ProductID: r.ProductID, RecordID: r.RecordID, Reason: "malformed hash"}
		}
		copy(level[i][:], b)
	}

	var pair [64]byte
	for len(level) > 1 {
		next := make([][32]byte, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			copy(pair[:32], level[i][:])
			copy(pair[32:], level[i+1][:])
			next[i/2] = blake3.Sum256(pair[:])
		}
		if len(level)%2 == 1 {
			next[len(next)-1] = level[len(level)-1]
		}
		level = next
	}
	return hex.EncodeToString(level[0][:]), nil
}
