package service

import (
	"context"

	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/provenance-ledger/internal/provenance"
)

// TraceServiceImpl implements the TraceService interface
type TraceServiceImpl struct {
	ledger *provenance.Ledger
	tracer *provenance.Tracer
	retry  shared.RetryPolicy
}

// NewTraceService creates a new trace service
func NewTraceService(core *provenance.Core, retry shared.RetryPolicy) TraceService {
	return &TraceServiceImpl{
		ledger: core.Ledger,
		tracer: core.Tracer,
		retry:  retry,
	}
}

func (s *TraceServiceImpl) Timeline(ctx context.Context, a actor.Actor, productID string, opts ledger.TimelineOptions) ([]*ledger.Record, error) {
	return shared.Retry(ctx, s.retry, func(ctx context.Context) ([]*ledger.Record, error) {
		tl, err := s.ledger.Timeline(ctx, a, productID, opts)
		if err != nil {
			return nil, err
		}
		return tl.Collect(), nil
	})
}

func (s *TraceServiceImpl) Trace(ctx context.Context, a actor.Actor, productID string, opts ledger.TimelineOptions) (*provenance.Trace, error) {
	return shared.Retry(ctx, s.retry, func(ctx context.Context) (*provenance.Trace, error) {
		return s.tracer.Trace(ctx, a, productID, opts)
	})
}

func (s *TraceServiceImpl) LatestReading(ctx context.Context, a actor.Actor, deviceID string) (*telemetry.LatestReading, error) {
	return shared.Retry(ctx, s.retry, func(ctx context.Context) (*telemetry.LatestReading, error) {
		return s.tracer.LatestReading(ctx, a, deviceID)
	})
}

type devicePage struct {
	records []*ledger.Record
	total   int64
}

func (s *TraceServiceImpl) DeviceHistory(ctx context.Context, a actor.Actor, deviceID string, page, perPage int) ([]*ledger.Record, int64, error) {
	out, err := shared.Retry(ctx, s.retry, func(ctx context.Context) (devicePage, error) {
		recs, total, err := s.tracer.DeviceHistory(ctx, a, deviceID, page, perPage)
		return devicePage{recs, total}, err
	})
	return out.records, out.total, err
}
