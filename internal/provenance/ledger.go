package provenance

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/provenance-ledger/internal/domain/access"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/shared"
)

// Ledger appends, corrects and reads provenance records
type Ledger struct {
	store  ledger.Store
	gate   *Gate
	now    Clock
	logger *slog.Logger
}

func NewLedger(store ledger.Store, gate *Gate, now Clock, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, gate: gate, now: now, logger: logger}
}

// Append stores in as the next record of its product. Callers validate
// and authorize before appending; the only failures left are an unknown
// product and store faults.
func (l *Ledger) Append(ctx context.Context, in ledger.Input) (*ledger.Record, error) {
	var out *ledger.Record
	err := l.store.Update(ctx, in.ProductID, func(w ledger.Writer) error {
		if _, err := lockedProduct(w, in.ProductID); err != nil {
			return err
		}
		existing, err := existingRecord(ctx, w, in.IdempotencyKey, in.Type, in.Actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		out, err = sealAndAppend(ctx, w, in, l.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckpointInput describes a logistics scan
type CheckpointInput struct {
	Location  string
	Note      string
	ClaimedAt *time.Time
}

// RecordCheckpoint appends a checkpoint record on behalf of a
func (l *Ledger) RecordCheckpoint(ctx context.Context, a actor.Actor, productID string, in CheckpointInput, token string) (*ledger.Record, error) {
	if !a.Verified() {
		return nil, access.ErrUnauthenticated{}
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return nil, shared.ErrInvalidInput{Field: "location", Reason: "must not be empty"}
	}

	var out *ledger.Record
	err := l.store.Update(ctx, productID, func(w ledger.Writer) error {
		p, err := lockedProduct(w, productID)
		if err != nil {
			return err
		}
		existing, err := existingRecord(ctx, w, token, ledger.RecordTypeCheckpoint, a.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		if err := l.gate.Authorize(a, access.ActionRecordCheckpoint, p); err != nil {
			return err
		}
		out, err = sealAndAppend(ctx, w, ledger.Input{
			ProductID:      productID,
			Type:           ledger.RecordTypeCheckpoint,
			Actor:          a,
			Payload:        ledger.CheckpointPayload{Location: location, Note: in.Note},
			ClaimedAt:      in.ClaimedAt,
			IdempotencyKey: token,
		}, l.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Checkpoint recorded", "product_id", productID, "record_id", out.RecordID, "location", location, actorAttrs(a))
	return out, nil
}

// Correct suppresses targetID by appending a correction record. The target
// keeps its bytes; only its visibility in timelines changes.
func (l *Ledger) Correct(ctx context.Context, a actor.Actor, productID string, targetID int64, reason, token string) (*ledger.Record, error) {
	if !a.Verified() {
		return nil, access.ErrUnauthenticated{}
	}
	var out *ledger.Record
	err := l.store.Update(ctx, productID, func(w ledger.Writer) error {
		p, err := lockedProduct(w, productID)
		if err != nil {
			return err
		}
		existing, err := existingRecord(ctx, w, token, ledger.RecordTypeCorrection, a.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		if err := l.gate.Authorize(a, access.ActionCorrectRecord, p); err != nil {
			return err
		}

		target, err := w.Record(ctx, targetID)
		if err != nil {
			return err
		}
		if !target.Type.Correctable() {
			return ledger.ErrNotCorrectable{ProductID: productID, RecordID: targetID, Type: target.Type}
		}
		if target.Deleted {
			return ledger.ErrAlreadyCorrected{ProductID: productID, RecordID: targetID}
		}

		rec, err := ledger.Seal(w.Head(), ledger.Input{
			ProductID:      productID,
			Type:           ledger.RecordTypeCorrection,
			Actor:          a,
			Payload:        ledger.CorrectionPayload{TargetRecordID: targetID, Reason: reason},
			IdempotencyKey: token,
		}, l.now())
		if err != nil {
			return err
		}
		if err := w.Suppress(ctx, targetID, rec.RecordID); err != nil {
			return err
		}
		if err := w.Append(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Record corrected", "product_id", productID, "target_record_id", targetID, "record_id", out.RecordID, actorAttrs(a))
	return out, nil
}

// Timeline returns the visible records of a product the actor is related to
func (l *Ledger) Timeline(ctx context.Context, a actor.Actor, productID string, opts ledger.TimelineOptions) (*ledger.Timeline, error) {
	if !a.Verified() {
		return nil, access.ErrUnauthenticated{}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p, err := l.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := l.gate.Authorize(a, access.ActionQueryTimeline, p); err != nil {
		return nil, err
	}
	records, err := l.store.Records(ctx, productID)
	if err != nil {
		return nil, err
	}
	return ledger.NewTimeline(productID, records, opts), nil
}
