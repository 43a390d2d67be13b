package provenance

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/provenance-ledger/internal/domain/access"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
)

// productNamespace derives product ids from request tokens, so a retried
// registration lands on the product the first attempt created.
var productNamespace = uuid.MustParse("8f0c3c52-5d0e-4bd4-9a56-0f4c1ab1e7d2")

// Registry owns product identity and the cached lifecycle state
type Registry struct {
	store  ledger.Store
	gate   *Gate
	now    Clock
	logger *slog.Logger
}

func NewRegistry(store ledger.Store, gate *Gate, now Clock, logger *slog.Logger) *Registry {
	return &Registry{store: store, gate: gate, now: now, logger: logger}
}

// Create registers a product owned by a and appends its registration
// record. A repeated token returns the product the first call created.
func (r *Registry) Create(ctx context.Context, a actor.Actor, attrs product.Attributes, token string) (*product.Product, error) {
	if err := r.gate.Authorize(a, access.ActionCreateProduct, nil); err != nil {
		return nil, err
	}
	if strings.TrimSpace(attrs.ID) == "" && token != "" {
		attrs.ID = uuid.NewSHA1(productNamespace, []byte(a.ID+"|"+token)).String()
	}
	p, err := product.NewProduct(a.ID, attrs, r.now())
	if err != nil {
		return nil, err
	}

	var out *product.Product
	err = r.store.Update(ctx, p.ID, func(w ledger.Writer) error {
		if existing := w.Product(); existing != nil {
			rec, err := existingRecord(ctx, w, token, ledger.RecordTypeTransition, a.ID)
			if err != nil {
				return err
			}
			if rec != nil && rec.RecordID == 1 {
				out = existing
				return nil
			}
			return product.ErrDuplicateProduct{ProductID: p.ID}
		}

		change := product.Change{From: product.StateNone, To: product.StateCreated, Event: product.EventRegistered}
		rec, err := ledger.Seal(w.Head(), ledger.Input{
			ProductID:      p.ID,
			Type:           ledger.RecordTypeTransition,
			Actor:          a,
			Payload:        change,
			IdempotencyKey: token,
		}, r.now())
		if err != nil {
			return err
		}
		if err := p.Apply(change, a, rec.Timestamp); err != nil {
			return err
		}
		if err := w.CreateProduct(ctx, p); err != nil {
			return err
		}
		if err := w.Append(ctx, rec); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Product registered", "product_id", out.ID, actorAttrs(a))
	return out, nil
}

// Get returns a product the actor is related to
func (r *Registry) Get(ctx context.Context, a actor.Actor, productID string) (*product.Product, error) {
	if !a.Verified() {
		return nil, access.ErrUnauthenticated{}
	}
	p, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := r.gate.Authorize(a, access.ActionGetProduct, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByRFID resolves a product by its bound tag
func (r *Registry) GetByRFID(ctx context.Context, a actor.Actor, tag string) (*product.Product, error) {
	if !a.Verified() {
		return nil, access.ErrUnauthenticated{}
	}
	p, err := r.store.GetProductByRFID(ctx, strings.TrimSpace(tag))
	if err != nil {
		return nil, err
	}
	if err := r.gate.Authorize(a, access.ActionGetProduct, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CurrentState returns the cached lifecycle state. The cache is written in
// the same atomic step as every transition record and is checked against a
// replay by Verify.
func (r *Registry) CurrentState(ctx context.Context, productID string) (product.State, error) {
	p, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	return p.State, nil
}

// Verification reports the integrity of one product's ledger
type Verification struct {
	ProductID       string        `json:"product_id"`
	RecordCount     int           `json:"record_count"`
	HeadHash        string        `json:"head_hash"`
	MerkleRoot      string        `json:"merkle_root"`
	ChainIntact     bool          `json:"chain_intact"`
	StateConsistent bool          `json:"state_consistent"`
	CachedState     product.State `json:"cached_state"`
	ReplayedState   product.State `json:"replayed_state,omitempty"`
	Problem         string        `json:"problem,omitempty"`
}

// Healthy reports whether both the chain and the cached state check out
func (v *Verification) Healthy() bool {
	return v.ChainIntact && v.StateConsistent
}

// Verify checks the hash chain and replays the transitions on behalf of a
func (r *Registry) Verify(ctx context.Context, a actor.Actor, productID string) (*Verification, error) {
	if !a.Verified() {
		return nil, access.ErrUnauthenticated{}
	}
	p, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := r.gate.Authorize(a, access.ActionVerifyProduct, p); err != nil {
		return nil, err
	}
	return r.check(ctx, p)
}

// Check verifies a product without an actor. It backs the consistency
// checker and the operator CLI.
func (r *Registry) Check(ctx context.Context, productID string) (*Verification, error) {
	p, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return r.check(ctx, p)
}

// check reads the records after the product row, so they contain at least
// the transitions the cached row reflects; the replay covers exactly those.
func (r *Registry) check(ctx context.Context, p *product.Product) (*Verification, error) {
	records, err := r.store.Records(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	v := &Verification{
		ProductID:   p.ID,
		RecordCount: len(records),
		CachedState: p.State,
		ChainIntact: true,
	}
	if len(records) > 0 {
		v.HeadHash = records[len(records)-1].Hash
	}

	if err := ledger.VerifyChain(records); err != nil {
		v.ChainIntact = false
		v.Problem = err.Error()
	} else if v.MerkleRoot, err = ledger.MerkleRoot(records); err != nil {
		v.ChainIntact = false
		v.Problem = err.Error()
	}

	changes, err := ledger.Transitions(records)
	if err != nil {
		v.Problem = joinProblem(v.Problem, err.Error())
		return v, nil
	}
	if int64(len(changes)) < p.Version {
		v.Problem = joinProblem(v.Problem, "cached row reflects transitions missing from the ledger")
		return v, nil
	}
	replayed, err := product.Replay(p, changes[:p.Version])
	if err != nil {
		v.Problem = joinProblem(v.Problem, err.Error())
		return v, nil
	}
	v.ReplayedState = replayed.State
	v.StateConsistent = product.SameProjection(p, replayed)
	if !v.StateConsistent {
		v.Problem = joinProblem(v.Problem, product.ErrStateDiverged{ProductID: p.ID, Cached: p.State, Replayed: replayed.State}.Error())
	}
	return v, nil
}

func joinProblem(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
