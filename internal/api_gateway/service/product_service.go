package service

import (
	"context"
	"log/slog"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/provenance"
)

// ProductServiceImpl implements the ProductService interface
type ProductServiceImpl struct {
	registry *provenance.Registry
	machine  *provenance.Machine
	retry    shared.RetryPolicy
	logger   *slog.Logger
}

// NewProductService creates a new product service
func NewProductService(core *provenance.Core, retry shared.RetryPolicy, logger *slog.Logger) ProductService {
	return &ProductServiceImpl{
		registry: core.Registry,
		machine:  core.Machine,
		retry:    retry,
		logger:   logger,
	}
}

// change is a product update together with the record that caused it
type change struct {
	product *product.Product
	record  *ledger.Record
}

func (s *ProductServiceImpl) RegisterProduct(ctx context.Context, a actor.Actor, attrs product.Attributes, token string) (*product.Product, error) {
	return shared.Retry(ctx, policyFor(s.retry, token), func(ctx context.Context) (*product.Product, error) {
		return s.registry.Create(ctx, a, attrs, token)
	})
}

func (s *ProductServiceImpl) GetProduct(ctx context.Context, a actor.Actor, productID string) (*product.Product, error) {
	return shared.Retry(ctx, s.retry, func(ctx context.Context) (*product.Product, error) {
		return s.registry.Get(ctx, a, productID)
	})
}

func (s *ProductServiceImpl) GetProductByRFID(ctx context.Context, a actor.Actor, tag string) (*product.Product, error) {
	return shared.Retry(ctx, s.retry, func(ctx context.Context) (*product.Product, error) {
		return s.registry.GetByRFID(ctx, a, tag)
	})
}

func (s *ProductServiceImpl) BindRFID(ctx context.Context, a actor.Actor, productID, tag, token string) (*product.Product, *ledger.Record, error) {
	out, err := shared.Retry(ctx, policyFor(s.retry, token), func(ctx context.Context) (change, error) {
		p, rec, err := s.machine.BindRFID(ctx, a, productID, tag, token)
		return change{p, rec}, err
	})
	return out.product, out.record, err
}

func (s *ProductServiceImpl) Transition(ctx context.Context, a actor.Actor, productID string, ev product.Event, opts provenance.TransitionOptions) (*product.Product, *ledger.Record, error) {
	out, err := shared.Retry(ctx, policyFor(s.retry, opts.Token), func(ctx context.Context) (change, error) {
		p, rec, err := s.machine.Transition(ctx, a, productID, ev, opts)
		return change{p, rec}, err
	})
	return out.product, out.record, err
}

func (s *ProductServiceImpl) VerifyProduct(ctx context.Context, a actor.Actor, productID string) (*provenance.Verification, error) {
	v, err := shared.Retry(ctx, s.retry, func(ctx context.Context) (*provenance.Verification, error) {
		return s.registry.Verify(ctx, a, productID)
	})
	if err == nil && !v.Healthy() {
		s.logger.Error("Ledger integrity violation", "kind", shared.KindIntegrityViolation, "product_id", productID, "problem", v.Problem)
	}
	return v, err
}

// policyFor disables retries of writes that carry no request token, since
// repeating them could apply the change twice
func policyFor(p shared.RetryPolicy, token string) shared.RetryPolicy {
	if token == "" {
		return shared.RetryPolicy{MaxAttempts: 1}
	}
	return p
}
