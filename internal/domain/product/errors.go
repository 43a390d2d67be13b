package product

import (
	"fmt"

	"github.com/provenance-ledger/internal/domain/shared"
)

// ErrProductNotFound indicates an unknown product
type ErrProductNotFound struct {
	ProductID string
}

func (e ErrProductNotFound) Error() string {
	return "product not found: " + e.ProductID
}

func (e ErrProductNotFound) Kind() shared.ErrorKind { return shared.KindNotFound }

// Is implements the errors.Is interface for ErrProductNotFound
func (e ErrProductNotFound) Is(target error) bool {
	t, ok := target.(ErrProductNotFound)
	if !ok {
		return false
	}
	return t.ProductID == "" || t.ProductID == e.ProductID
}

// ErrRFIDNotBound indicates that no product carries the tag
type ErrRFIDNotBound struct {
	Tag string
}

func (e ErrRFIDNotBound) Error() string {
	return "no product bound to rfid tag: " + e.Tag
}

func (e ErrRFIDNotBound) Kind() shared.ErrorKind { return shared.KindNotFound }

// ErrDuplicateProduct indicates a reused product id
type ErrDuplicateProduct struct {
	ProductID string
}

func (e ErrDuplicateProduct) Error() string {
	return "product already exists: " + e.ProductID
}

func (e ErrDuplicateProduct) Kind() shared.ErrorKind { return shared.KindDuplicateID }

// Is implements the errors.Is interface for ErrDuplicateProduct
func (e ErrDuplicateProduct) Is(target error) bool {
	t, ok := target.(ErrDuplicateProduct)
	if !ok {
		return false
	}
	return t.ProductID == "" || t.ProductID == e.ProductID
}

// ErrDuplicateRFID indicates a tag already bound to another product
type ErrDuplicateRFID struct {
	Tag string
}

func (e ErrDuplicateRFID) Error() string {
	return "rfid tag already bound: " + e.Tag
}

func (e ErrDuplicateRFID) Kind() shared.ErrorKind { return shared.KindDuplicateID }

// ErrIllegalTransition indicates an event that is not legal from the current state
type ErrIllegalTransition struct {
	ProductID string
	From      State
	Event     Event
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition for product %s: %s from %s", e.ProductID, e.Event, e.From)
}

func (e ErrIllegalTransition) Kind() shared.ErrorKind { return shared.KindIllegalTransition }

// Is implements the errors.Is interface for ErrIllegalTransition
func (e ErrIllegalTransition) Is(target error) bool {
	_, ok := target.(ErrIllegalTransition)
	return ok
}

// ErrStateDiverged indicates the cached lifecycle view disagrees with the ledger
type ErrStateDiverged struct {
	ProductID string
	Cached    State
	Replayed  State
}

func (e ErrStateDiverged) Error() string {
	return fmt.Sprintf("product %s diverged from ledger: cached %s, replayed %s", e.ProductID, e.Cached, e.Replayed)
}

func (e ErrStateDiverged) Kind() shared.ErrorKind { return shared.KindIntegrityViolation }
