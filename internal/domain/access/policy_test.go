package access

import (
	"errors"
	"testing"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func productIn(state product.State) *product.Product {
	return &product.Product{
		ID:          "p-1",
		ProducerID:  "producer-1",
		CustodianID: "dist-1",
		ConsumerID:  "consumer-1",
		State:       state,
	}
}

func TestAuthorize(t *testing.T) {
	producer := actor.New("producer-1", actor.RoleProducer)
	otherProducer := actor.New("producer-2", actor.RoleProducer)
	distributor := actor.New("dist-1", actor.RoleDistributor)
	otherDistributor := actor.New("dist-2", actor.RoleDistributor)
	retailer := actor.New("retail-1", actor.RoleRetailer)
	buyer := actor.New("consumer-1", actor.RoleConsumer)
	stranger := actor.New("consumer-2", actor.RoleConsumer)
	admin := actor.New("root", actor.RoleAdmin)

	tests := []struct {
		name    string
		actor   actor.Actor
		action  Action
		product *product.Product
		want    shared.ErrorKind // empty means allowed
	}{
		{name: "unverified", actor: actor.Actor{}, action: ActionQueryTimeline, product: productIn(product.StateActive), want: shared.KindUnauthenticated},
		{name: "producer creates", actor: producer, action: ActionCreateProduct},
		{name: "distributor cannot create", actor: distributor, action: ActionCreateProduct, want: shared.KindForbidden},
		{name: "producer binds own", actor: producer, action: ActionBindRFID, product: productIn(product.StateCreated)},
		{name: "other producer cannot bind", actor: otherProducer, action: ActionBindRFID, product: productIn(product.StateCreated), want: shared.KindForbidden},
		{name: "bind outside created", actor: producer, action: ActionBindRFID, product: productIn(product.StateBound), want: shared.KindIllegalTransition},
		{name: "distributor activate on active", actor: distributor, action: ActionActivate, product: productIn(product.StateActive), want: shared.KindIllegalTransition},
		{name: "distributor activate on bound", actor: distributor, action: ActionActivate, product: productIn(product.StateBound), want: shared.KindForbidden},
		{name: "any distributor ships", actor: otherDistributor, action: ActionShip, product: productIn(product.StateActive)},
		{name: "producer cannot ship", actor: producer, action: ActionShip, product: productIn(product.StateActive), want: shared.KindForbidden},
		{name: "custodian arrives", actor: distributor, action: ActionArrive, product: productIn(product.StateInTransit)},
		{name: "non custodian cannot arrive", actor: otherDistributor, action: ActionArrive, product: productIn(product.StateInTransit), want: shared.KindForbidden},
		{name: "retailer confirms delivery", actor: retailer, action: ActionConfirmDelivery, product: productIn(product.StateInTransit)},
		{name: "consumer confirms direct sale", actor: buyer, action: ActionConfirmDirectSale, product: productIn(product.StateActive)},
		{name: "distributor cannot sell", actor: distributor, action: ActionConfirmDelivery, product: productIn(product.StateInTransit), want: shared.KindForbidden},
		{name: "producer disposes", actor: producer, action: ActionDispose, product: productIn(product.StateSold)},
		{name: "retailer cannot dispose", actor: retailer, action: ActionDispose, product: productIn(product.StateSold), want: shared.KindForbidden},
		{name: "dispose twice", actor: admin, action: ActionDispose, product: productIn(product.StateDisposed), want: shared.KindIllegalTransition},
		{name: "custodian telemetry", actor: distributor, action: ActionAppendTelemetry, product: productIn(product.StateInTransit)},
		{name: "telemetry before binding", actor: producer, action: ActionAppendTelemetry, product: productIn(product.StateCreated), want: shared.KindInvalidState},
		{name: "consumer cannot append telemetry", actor: buyer, action: ActionAppendTelemetry, product: productIn(product.StateActive), want: shared.KindForbidden},
		{name: "checkpoint when sold", actor: distributor, action: ActionRecordCheckpoint, product: productIn(product.StateSold), want: shared.KindInvalidState},
		{name: "producer corrects", actor: producer, action: ActionCorrectRecord, product: productIn(product.StateActive)},
		{name: "distributor cannot correct", actor: distributor, action: ActionCorrectRecord, product: productIn(product.StateActive), want: shared.KindForbidden},
		{name: "producer queries", actor: producer, action: ActionQueryTimeline, product: productIn(product.StateSold)},
		{name: "custodian queries", actor: distributor, action: ActionQueryTimeline, product: productIn(product.StateInTransit)},
		{name: "purchaser queries", actor: buyer, action: ActionQueryTimeline, product: productIn(product.StateSold)},
		{name: "unrelated consumer", actor: stranger, action: ActionQueryTimeline, product: productIn(product.StateSold), want: shared.KindForbidden},
		{name: "unrelated retailer", actor: retailer, action: ActionGetProduct, product: productIn(product.StateActive), want: shared.KindForbidden},
		{name: "admin bypass", actor: admin, action: ActionQueryTimeline, product: productIn(product.StateSold)},
		{name: "admin manages users", actor: admin, action: ActionManageUsers},
		{name: "producer cannot manage users", actor: producer, action: ActionManageUsers, want: shared.KindForbidden},
		{name: "device audit is admin only", actor: producer, action: ActionAuditDevice, want: shared.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.action, tt.product)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, shared.KindOf(err), "got %v", err)
		})
	}
}

func TestActionForEvent_RoundTrip(t *testing.T) {
	events := []product.Event{
		product.EventRFIDBound, product.EventActivate, product.EventShipmentDeparted,
		product.EventCheckpointArrived, product.EventDeliveryConfirmed,
		product.EventDirectSaleConfirmed, product.EventDispose,
	}
	for _, ev := range events {
		act, ok := ActionForEvent(ev)
		assert.True(t, ok)
		back, ok := act.Event()
		assert.True(t, ok)
		assert.Equal(t, ev, back)
	}

	_, ok := ActionQueryTimeline.Event()
	assert.False(t, ok)
}

func TestErrForbidden_Is(t *testing.T) {
	err := Authorize(actor.New("x", actor.RoleConsumer), ActionCreateProduct, nil)
	assert.True(t, errors.Is(err, ErrForbidden{}))
}

func TestCanPerform(t *testing.T) {
	assert.True(t, CanPerform(actor.RoleProducer, ActionCreateProduct, product.StateNone))
	assert.True(t, CanPerform(actor.RoleDistributor, ActionShip, product.StateActive))
	assert.False(t, CanPerform(actor.RoleDistributor, ActionShip, product.StateCreated))
	assert.True(t, CanPerform(actor.RoleRetailer, ActionConfirmDelivery, product.StateInTransit))
	assert.False(t, CanPerform(actor.RoleConsumer, ActionAppendTelemetry, product.StateActive))
	assert.True(t, CanPerform(actor.RoleAdmin, ActionDispose, product.StateSold))
	assert.False(t, CanPerform(actor.RoleAdmin, ActionDispose, product.StateDisposed))
	assert.False(t, CanPerform(actor.Role("auditor"), ActionQueryTimeline, product.StateActive))
}
