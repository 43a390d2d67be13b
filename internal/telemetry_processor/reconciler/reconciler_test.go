package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/provenance-ledger/internal/config"
	"github.com/provenance-ledger/internal/data/memory"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/provenance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Check(ctx context.Context, productID string) (*provenance.Verification, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provenance.Verification), args.Error(1)
}

type MockLister struct {
	mock.Mock
}

func (m *MockLister) RecentlyUpdated(ctx context.Context, since time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func testConfig() *config.ConsistencyConfig {
	return &config.ConsistencyConfig{Interval: time.Minute, BatchSize: 10}
}

func TestRunOnce_HealthyLedgers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	core := provenance.New(store, slog.Default(), provenance.Options{})

	producer := actor.New("producer-1", actor.RoleProducer)
	p, err := core.Registry.Create(ctx, producer, product.Attributes{Name: "Honey"}, "")
	require.NoError(t, err)
	_, _, err = core.Machine.BindRFID(ctx, producer, p.ID, "RF-77", "")
	require.NoError(t, err)

	r := NewReconciler(testConfig(), store, core.Registry, slog.Default())
	report, err := r.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Checked)
	assert.Empty(t, report.Violations)
	assert.False(t, report.Saturated)
}

func TestRunOnce_ReportsViolations(t *testing.T) {
	lister := &MockLister{}
	checker := &MockChecker{}
	lister.On("RecentlyUpdated", mock.Anything, mock.Anything, 10).Return([]string{"p1", "p2", "p3"}, nil).Once()
	checker.On("Check", mock.Anything, "p1").Return(&provenance.Verification{ProductID: "p1", ChainIntact: true, StateConsistent: true}, nil).Once()
	checker.On("Check", mock.Anything, "p2").Return(&provenance.Verification{
		ProductID:       "p2",
		ChainIntact:     false,
		StateConsistent: true,
		Problem:         ledger.ErrChainBroken{ProductID: "p2", RecordID: 3, Reason: "hash mismatch"}.Error(),
	}, nil).Once()
	checker.On("Check", mock.Anything, "p3").Return(nil, errors.New("db down")).Once()

	r := NewReconciler(testConfig(), lister, checker, slog.Default())
	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "p2", report.Violations[0].ProductID)
	lister.AssertExpectations(t)
	checker.AssertExpectations(t)
}

func TestRunOnce_AdvancesWatermark(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := start
	lister := &MockLister{}
	checker := &MockChecker{}

	r := NewReconciler(testConfig(), lister, checker, slog.Default())
	r.now = func() time.Time { return clock }
	r.since = start.Add(-time.Minute)

	lister.On("RecentlyUpdated", mock.Anything, start.Add(-time.Minute), 10).Return([]string{}, nil).Once()
	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	// The next window reaches back a tenth of the interval before start
	clock = start.Add(time.Minute)
	lister.On("RecentlyUpdated", mock.Anything, start.Add(-6*time.Second), 10).Return([]string{}, nil).Once()
	_, err = r.RunOnce(context.Background())
	require.NoError(t, err)

	lister.AssertExpectations(t)
}

func TestRunOnce_ChecksLateCommitsOnNextPass(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	core := provenance.New(store, slog.Default(), provenance.Options{})
	producer := actor.New("producer-1", actor.RoleProducer)

	r := NewReconciler(testConfig(), store, core.Registry, slog.Default())
	report, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)

	// A write stamped just before the previous pass started, committed after it listed
	lastStart := r.since.Add(r.overlap())
	core = provenance.New(store, slog.Default(), provenance.Options{Now: func() time.Time { return lastStart.Add(-time.Second) }})
	_, err = core.Registry.Create(ctx, producer, product.Attributes{Name: "Honey"}, "")
	require.NoError(t, err)

	report, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
}

func TestRunOnce_ListFailure(t *testing.T) {
	lister := &MockLister{}
	lister.On("RecentlyUpdated", mock.Anything, mock.Anything, 10).Return(nil, errors.New("db down")).Once()

	r := NewReconciler(testConfig(), lister, &MockChecker{}, slog.Default())
	before := r.since
	_, err := r.RunOnce(context.Background())

	assert.ErrorContains(t, err, "failed to list recently updated products")
	assert.Equal(t, before, r.since)
}

func TestRunOnce_Saturated(t *testing.T) {
	lister := &MockLister{}
	checker := &MockChecker{}
	cfg := &config.ConsistencyConfig{Interval: time.Minute, BatchSize: 2}
	lister.On("RecentlyUpdated", mock.Anything, mock.Anything, 2).Return([]string{"p1", "p2"}, nil).Once()
	checker.On("Check", mock.Anything, mock.Anything).Return(&provenance.Verification{ChainIntact: true, StateConsistent: true}, nil)

	r := NewReconciler(cfg, lister, checker, slog.Default())
	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Saturated)
	assert.Equal(t, 2, report.Checked)
}
