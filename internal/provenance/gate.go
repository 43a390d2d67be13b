package provenance

import (
	"log/slog"

	"github.com/provenance-ledger/internal/domain/access"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
)

// Gate applies the static access policy and logs every denial
type Gate struct {
	logger *slog.Logger
}

func NewGate(logger *slog.Logger) *Gate {
	return &Gate{logger: logger}
}

// Authorize decides whether a may perform act on p. p is nil for actions
// not scoped to an existing product.
func (g *Gate) Authorize(a actor.Actor, act access.Action, p *product.Product) error {
	err := access.Authorize(a, act, p)
	if err != nil {
		attrs := []any{actorAttrs(a), "action", string(act), "kind", string(shared.KindOf(err))}
		if p != nil {
			attrs = append(attrs, "product_id", p.ID, "state", string(p.State))
		}
		g.logger.Info("Request denied", attrs...)
	}
	return err
}

// CanPerform answers the role-level question without a concrete product
func (g *Gate) CanPerform(role actor.Role, act access.Action, state product.State) bool {
	return access.CanPerform(role, act, state)
}
