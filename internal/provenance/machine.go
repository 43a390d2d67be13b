package provenance

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/provenance-ledger/internal/domain/access"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
)

// Machine drives products through the lifecycle table. Each transition is
// judged against the state held under the product's write lock, so of two
// racing conflicting transitions the second observes the first.
type Machine struct {
	store  ledger.Store
	gate   *Gate
	now    Clock
	logger *slog.Logger
}

func NewMachine(store ledger.Store, gate *Gate, now Clock, logger *slog.Logger) *Machine {
	return &Machine{store: store, gate: gate, now: now, logger: logger}
}

// TransitionOptions carry the event-specific inputs of a transition
type TransitionOptions struct {
	CounterpartID string // Receiving party, or the buyer of a sale
	RFIDTag       string
	ClaimedAt     *time.Time
	Token         string
}

// Transition applies ev to the product on behalf of a and returns the
// updated product with the transition record
func (m *Machine) Transition(ctx context.Context, a actor.Actor, productID string, ev product.Event, opts TransitionOptions) (*product.Product, *ledger.Record, error) {
	if !a.Verified() {
		return nil, nil, access.ErrUnauthenticated{}
	}
	act, ok := access.ActionForEvent(ev)
	if !ok || ev == product.EventRegistered {
		return nil, nil, shared.ErrInvalidInput{Field: "event", Reason: "not a caller-triggerable lifecycle event"}
	}
	opts.RFIDTag = strings.TrimSpace(opts.RFIDTag)
	opts.CounterpartID = strings.TrimSpace(opts.CounterpartID)
	if ev == product.EventRFIDBound && opts.RFIDTag == "" {
		return nil, nil, shared.ErrInvalidInput{Field: "rfid_tag", Reason: "must not be empty"}
	}
	if ev != product.EventRFIDBound {
		opts.RFIDTag = ""
	}

	var (
		out *product.Product
		rec *ledger.Record
	)
	err := m.store.Update(ctx, productID, func(w ledger.Writer) error {
		p, err := lockedProduct(w, productID)
		if err != nil {
			return err
		}
		existing, err := existingRecord(ctx, w, opts.Token, ledger.RecordTypeTransition, a.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out, rec = p, existing
			return nil
		}
		if err := m.gate.Authorize(a, act, p); err != nil {
			return err
		}

		to, err := product.Next(p.State, ev)
		if err != nil {
			return product.ErrIllegalTransition{ProductID: productID, From: p.State, Event: ev}
		}
		change := product.Change{
			From:          p.State,
			To:            to,
			Event:         ev,
			CounterpartID: opts.CounterpartID,
			RFIDTag:       opts.RFIDTag,
		}
		rec, err = ledger.Seal(w.Head(), ledger.Input{
			ProductID:      productID,
			Type:           ledger.RecordTypeTransition,
			Actor:          a,
			Payload:        change,
			ClaimedAt:      opts.ClaimedAt,
			IdempotencyKey: opts.Token,
		}, m.now())
		if err != nil {
			return err
		}
		if err := p.Apply(change, a, rec.Timestamp); err != nil {
			return err
		}
		if err := w.SaveProduct(ctx, p); err != nil {
			return err
		}
		if err := w.Append(ctx, rec); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("Product transitioned",
		"product_id", productID,
		"event", string(ev),
		"state", string(out.State),
		"record_id", rec.RecordID,
		actorAttrs(a),
	)
	return out, rec, nil
}

// BindRFID attaches tag to a freshly registered product
func (m *Machine) BindRFID(ctx context.Context, a actor.Actor, productID, tag, token string) (*product.Product, *ledger.Record, error) {
	return m.Transition(ctx, a, productID, product.EventRFIDBound, TransitionOptions{RFIDTag: tag, Token: token})
}
