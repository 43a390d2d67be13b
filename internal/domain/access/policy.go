// Package access holds the static authorization policy over
// (role, action, lifecycle state). Every pair not explicitly allowed is
// denied.
package access

import (
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/product"
)

// Action identifies an operation subject to authorization
type Action string

const (
	ActionCreateProduct     Action = "createProduct"
	ActionBindRFID          Action = "bindRfid"
	ActionActivate          Action = "activate"
	ActionShip              Action = "shipmentDeparted"
	ActionArrive            Action = "checkpointArrived"
	ActionConfirmDelivery   Action = "deliveryConfirmed"
	ActionConfirmDirectSale Action = "directSaleConfirmed"
	ActionDispose           Action = "dispose"
	ActionAppendTelemetry   Action = "appendTelemetry"
	ActionRecordCheckpoint  Action = "recordCheckpoint"
	ActionCorrectRecord     Action = "correctRecord"
	ActionQueryTimeline     Action = "queryTimeline"
	ActionGetProduct        Action = "getProduct"
	ActionVerifyProduct     Action = "verifyProduct"
	ActionAuditDevice       Action = "auditDevice"
	ActionManageUsers       Action = "manageUsers"
)

// ActionForEvent maps a lifecycle event to the action that triggers it
func ActionForEvent(ev product.Event) (Action, bool) {
	switch ev {
	case product.EventRegistered:
		return ActionCreateProduct, true
	case product.EventRFIDBound:
		return ActionBindRFID, true
	case product.EventActivate:
		return ActionActivate, true
	case product.EventShipmentDeparted:
		return ActionShip, true
	case product.EventCheckpointArrived:
		return ActionArrive, true
	case product.EventDeliveryConfirmed:
		return ActionConfirmDelivery, true
	case product.EventDirectSaleConfirmed:
		return ActionConfirmDirectSale, true
	case product.EventDispose:
		return ActionDispose, true
	}
	return "", false
}

// Event returns the lifecycle event an action triggers, if any
func (a Action) Event() (product.Event, bool) {
	switch a {
	case ActionBindRFID:
		return product.EventRFIDBound, true
	case ActionActivate:
		return product.EventActivate, true
	case ActionShip:
		return product.EventShipmentDeparted, true
	case ActionArrive:
		return product.EventCheckpointArrived, true
	case ActionConfirmDelivery:
		return product.EventDeliveryConfirmed, true
	case ActionConfirmDirectSale:
		return product.EventDirectSaleConfirmed, true
	case ActionDispose:
		return product.EventDispose, true
	}
	return "", false
}

// Authorize decides whether a may perform act on p. p is nil for actions
// that are not scoped to an existing product. Checks run in order: a
// verified identity, legality in the product's current state, then the
// role and relationship rules.
func Authorize(a actor.Actor, act Action, p *product.Product) error {
	if !a.Verified() {
		return ErrUnauthenticated{}
	}
	if err := checkState(act, p); err != nil {
		return err
	}
	if permitted(a, act, p) {
		return nil
	}
	return ErrForbidden{ActorID: a.ID, Role: a.Role, Action: act, ProductID: productID(p)}
}

// CanPerform answers the role-level question for a product in state,
// treating the actor as holding every relationship to the product.
func CanPerform(role actor.Role, act Action, state product.State) bool {
	const subject = "subject"
	a := actor.Actor{ID: subject, Role: role}
	if act == ActionCreateProduct {
		return Authorize(a, act, nil) == nil
	}
	p := &product.Product{ID: subject, State: state, ProducerID: subject, CustodianID: subject, ConsumerID: subject}
	return Authorize(a, act, p) == nil
}

func checkState(act Action, p *product.Product) error {
	if p == nil {
		return nil
	}
	if ev, ok := act.Event(); ok {
		if _, err := product.Next(p.State, ev); err != nil {
			return product.ErrIllegalTransition{ProductID: p.ID, From: p.State, Event: ev}
		}
		return nil
	}

	switch act {
	case ActionAppendTelemetry:
		switch p.State {
		case product.StateBound, product.StateActive, product.StateInTransit:
			return nil
		}
		return ErrInvalidState{ProductID: p.ID, State: p.State, Action: act}
	case ActionRecordCheckpoint:
		switch p.State {
		case product.StateActive, product.StateInTransit:
			return nil
		}
		return ErrInvalidState{ProductID: p.ID, State: p.State, Action: act}
	}
	return nil
}

func permitted(a actor.Actor, act Action, p *product.Product) bool {
	switch a.Role {
	case actor.RoleAdmin:
		return true

	case actor.RoleProducer:
		switch act {
		case ActionCreateProduct:
			return p == nil
		case ActionBindRFID, ActionActivate, ActionDispose, ActionCorrectRecord, ActionVerifyProduct:
			return isProducer(p, a.ID)
		case ActionAppendTelemetry, ActionRecordCheckpoint:
			return isProducer(p, a.ID) || isCustodian(p, a.ID)
		case ActionQueryTimeline, ActionGetProduct:
			return related(p, a.ID)
		}

	case actor.RoleDistributor:
		switch act {
		case ActionShip:
			return p != nil
		case ActionArrive, ActionAppendTelemetry, ActionRecordCheckpoint:
			return isCustodian(p, a.ID)
		case ActionQueryTimeline, ActionGetProduct:
			return related(p, a.ID)
		}

	case actor.RoleRetailer:
		switch act {
		case ActionConfirmDelivery, ActionConfirmDirectSale:
			return p != nil
		case ActionAppendTelemetry, ActionRecordCheckpoint:
			return isCustodian(p, a.ID)
		case ActionQueryTimeline, ActionGetProduct:
			return related(p, a.ID)
		}

	case actor.RoleConsumer:
		switch act {
		case ActionConfirmDelivery, ActionConfirmDirectSale:
			return p != nil
		case ActionQueryTimeline, ActionGetProduct:
			return related(p, a.ID)
		}
	}
	return false
}

func isProducer(p *product.Product, id string) bool {
	return p != nil && p.IsProducer(id)
}

func isCustodian(p *product.Product, id string) bool {
	return p != nil && p.IsCustodian(id)
}

// related covers the producer, the current custodian and the purchaser
func related(p *product.Product, id string) bool {
	return p != nil && (p.IsProducer(id) || p.IsCustodian(id) || p.IsPurchaser(id))
}

func productID(p *product.Product) string {
	if p == nil {
		return ""
	}
	return p.ID
}
