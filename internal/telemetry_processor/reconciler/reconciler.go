// Package reconciler periodically replays recently changed products and
// reports ledgers whose hash chain or cached lifecycle view no longer checks
// out.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/provenance-ledger/internal/config"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/provenance"
)

// ChangeLister lists products changed since a point in time
type ChangeLister interface {
	RecentlyUpdated(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// Checker verifies one product without an actor
type Checker interface {
	Check(ctx context.Context, productID string) (*provenance.Verification, error)
}

// Report summarizes one pass
type Report struct {
	Checked    int
	Violations []*provenance.Verification
	Saturated  bool // the batch limit was hit, later changes wait for the next pass
}

// Reconciler runs the consistency checks on a ticker
type Reconciler struct {
	lister    ChangeLister
	checker   Checker
	interval  time.Duration
	batchSize int
	now       func() time.Time
	since     time.Time
	logger    *slog.Logger
}

// NewReconciler creates a reconciler whose first pass covers the interval
// before it starts
func NewReconciler(cfg *config.ConsistencyConfig, lister ChangeLister, checker Checker, logger *slog.Logger) *Reconciler {
	r := &Reconciler{
		lister:    lister,
		checker:   checker,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       time.Now,
		logger:    logger,
	}
	r.since = r.now().Add(-cfg.Interval)
	return r
}

// Start runs passes until ctx is canceled
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting consistency checker", "interval", r.interval.String(), "batch_size", r.batchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Consistency checker stopping due to context cancellation")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("Consistency pass failed", "error", err)
			}
		}
	}
}

// overlap is how far each pass reaches back before the previous one
// started, covering writes that committed after that pass listed changes
func (r *Reconciler) overlap() time.Duration {
	return r.interval / 10
}

// RunOnce checks every product changed since the previous pass
func (r *Reconciler) RunOnce(ctx context.Context) (*Report, error) {
	started := r.now()
	ids, err := r.lister.RecentlyUpdated(ctx, r.since, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list recently updated products: %w", err)
	}

	report := &Report{Saturated: len(ids) >= r.batchSize}
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		v, err := r.checker.Check(ctx, id)
		if err != nil {
			r.logger.Error("Failed to check product", "product_id", id, "error", err)
			continue
		}
		report.Checked++
		if v.Healthy() {
			continue
		}
		report.Violations = append(report.Violations, v)
		r.logger.Error("Ledger integrity violation",
			"kind", shared.KindIntegrityViolation,
			"product_id", v.ProductID,
			"chain_intact", v.ChainIntact,
			"state_consistent", v.StateConsistent,
			"cached_state", v.CachedState,
			"replayed_state", v.ReplayedState,
			"problem", v.Problem,
		)
	}

	if report.Saturated {
		r.logger.Warn("Consistency batch limit reached, some changed products were not checked this pass",
			"batch_size", r.batchSize,
		)
	}
	r.since = started.Add(-r.overlap())
	r.logger.Debug("Consistency pass finished", "checked", report.Checked, "violations", len(report.Violations))
	return report, nil
}
