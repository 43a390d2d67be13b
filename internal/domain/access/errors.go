package access

import (
	"fmt"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
)

// ErrUnauthenticated indicates a call without a verified actor
type ErrUnauthenticated struct{}

func (e ErrUnauthenticated) Error() string { return "no verified actor" }

func (e ErrUnauthenticated) Kind() shared.ErrorKind { return shared.KindUnauthenticated }

// ErrForbidden indicates a role or relationship that does not permit the action
type ErrForbidden struct {
	ActorID   string
	Role      actor.Role
	Action    Action
	ProductID string
}

func (e ErrForbidden) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("%s %s may not %s", e.Role, e.ActorID, e.Action)
	}
	return fmt.Sprintf("%s %s may not %s on product %s", e.Role, e.ActorID, e.Action, e.ProductID)
}

func (e ErrForbidden) Kind() shared.ErrorKind { return shared.KindForbidden }

// Is implements the errors.Is interface for ErrForbidden
func (e ErrForbidden) Is(target error) bool {
	_, ok := target.(ErrForbidden)
	return ok
}

// ErrInvalidState indicates an action that is not legal in the product's state
type ErrInvalidState struct {
	ProductID string
	State     product.State
	Action    Action
}

func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("%s is not allowed for product %s in state %s", e.Action, e.ProductID, e.State)
}

func (e ErrInvalidState) Kind() shared.ErrorKind { return shared.KindInvalidState }
