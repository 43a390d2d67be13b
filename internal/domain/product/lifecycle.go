package product

import (
	"fmt"
	"time"

	"github.com/provenance-ledger/internal/domain/actor"
)

// State is a product's position in its supply-chain life
type State string

const (
	StateNone      State = "none" // Before registration
	StateCreated   State = "created"
	StateBound     State = "bound"
	StateActive    State = "active"
	StateInTransit State = "inTransit"
	StateSold      State = "sold"
	StateDisposed  State = "disposed"
)

// Terminal reports whether no further transition can leave s
func (s State) Terminal() bool {
	return s == StateDisposed
}

// Event triggers a lifecycle transition
type Event string

const (
	EventRegistered          Event = "registered"
	EventRFIDBound           Event = "rfidBound"
	EventActivate            Event = "activate"
	EventShipmentDeparted    Event = "shipmentDeparted"
	EventCheckpointArrived   Event = "checkpointArrived"
	EventDeliveryConfirmed   Event = "deliveryConfirmed"
	EventDirectSaleConfirmed Event = "directSaleConfirmed"
	EventDispose             Event = "dispose"
)

// ParseEvent accepts the caller-triggerable events. Registration only
// happens through product creation.
func ParseEvent(s string) (Event, error) {
	switch e := Event(s); e {
	case EventRFIDBound, EventActivate, EventShipmentDeparted, EventCheckpointArrived,
		EventDeliveryConfirmed, EventDirectSaleConfirmed, EventDispose:
		return e, nil
	}
	return "", fmt.Errorf("unknown lifecycle event %q", s)
}

// Next returns the state reached by applying ev in from, or
// ErrIllegalTransition when the pair is not in the transition table.
func Next(from State, ev Event) (State, error) {
	switch ev {
	case EventRegistered:
		if from == StateNone {
			return StateCreated, nil
		}
	case EventRFIDBound:
		if from == StateCreated {
			return StateBound, nil
		}
	case EventActivate:
		if from == StateBound {
			return StateActive, nil
		}
	case EventShipmentDeparted:
		if from == StateActive {
			return StateInTransit, nil
		}
	case EventCheckpointArrived:
		if from == StateInTransit {
			return StateActive, nil
		}
	case EventDeliveryConfirmed:
		if from == StateInTransit {
			return StateSold, nil
		}
	case EventDirectSaleConfirmed:
		if from == StateActive {
			return StateSold, nil
		}
	case EventDispose:
		if from != StateNone && !from.Terminal() {
			return StateDisposed, nil
		}
	}
	return "", ErrIllegalTransition{From: from, Event: ev}
}

// Change is the payload of a transition record
type Change struct {
	From          State  `json:"from_state"`
	To            State  `json:"to_state"`
	Event         Event  `json:"event"`
	CounterpartID string `json:"counterpart_id,omitempty"`
	RFIDTag       string `json:"rfid_tag,omitempty"`
}

// Apply moves p along c on behalf of by, updating the custody projection.
// Live transitions and ledger replay both go through Apply, so the cached
// view and the replayed view cannot disagree on the rules.
func (p *Product) Apply(c Change, by actor.Actor, at time.Time) error {
	if p.State != c.From {
		return ErrStateDiverged{ProductID: p.ID, Cached: p.State, Replayed: c.From}
	}
	to, err := Next(c.From, c.Event)
	if err != nil {
		return ErrIllegalTransition{ProductID: p.ID, From: c.From, Event: c.Event}
	}
	if to != c.To {
		return ErrStateDiverged{ProductID: p.ID, Cached: c.To, Replayed: to}
	}

	switch c.Event {
	case EventRegistered:
		p.CustodianID = p.ProducerID
	case EventRFIDBound:
		p.RFIDTag = c.RFIDTag
	case EventShipmentDeparted:
		if by.Role == actor.RoleDistributor || c.CounterpartID == "" {
			p.CustodianID = by.ID
		} else {
			p.CustodianID = c.CounterpartID
		}
	case EventCheckpointArrived:
		if c.CounterpartID != "" {
			p.CustodianID = c.CounterpartID
		}
	case EventDeliveryConfirmed, EventDirectSaleConfirmed:
		buyer := c.CounterpartID
		if by.Role == actor.RoleConsumer {
			buyer = by.ID
		}
		if buyer != "" {
			p.ConsumerID = buyer
			p.CustodianID = buyer
		}
	}

	p.State = to
	p.Version++
	p.UpdatedAt = at.UTC()
	return nil
}

// AppliedChange is a transition together with who made it and when
type AppliedChange struct {
	Change Change
	Actor  actor.Actor
	At     time.Time
}

// Replay rebuilds the lifecycle projection of base from its transitions,
// applied in ledger order starting before registration.
func Replay(base *Product, changes []AppliedChange) (*Product, error) {
	p := base.Clone()
	p.State = StateNone
	p.RFIDTag = ""
	p.CustodianID = ""
	p.ConsumerID = ""
	p.Version = 0
	p.UpdatedAt = p.CreatedAt

	for _, ac := range changes {
		if err := p.Apply(ac.Change, ac.Actor, ac.At); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SameProjection reports whether a and b agree on every replay-derived field
func SameProjection(a, b *Product) bool {
	return a.State == b.State &&
		a.RFIDTag == b.RFIDTag &&
		a.CustodianID == b.CustodianID &&
		a.ConsumerID == b.ConsumerID &&
		a.Version == b.Version
}
