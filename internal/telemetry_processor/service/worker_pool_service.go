package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/telemetry"
)

// WorkerPoolIngestionService bounds how many samples are ingested at once
type WorkerPoolIngestionService struct {
	baseService IngestionService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

type ingestResult struct {
	rec *ledger.Record
	err error
}

func NewWorkerPoolIngestionService(
	baseService IngestionService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolIngestionService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolIngestionService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// IngestReading runs the sample on a pooled worker and waits for its result
func (s *WorkerPoolIngestionService) IngestReading(ctx context.Context, reading *telemetry.Reading) (*ledger.Record, error) {
	resultChan := make(chan ingestResult, 1)
	readingCopy := *reading

	err := s.pool.Submit(func() {
		rec, err := s.baseService.IngestReading(ctx, &readingCopy)
		resultChan <- ingestResult{rec: rec, err: err}
	})
	if err != nil {
		s.logger.Error("Failed to submit sample to worker pool",
			"device_id", reading.DeviceID,
			"product_id", reading.ProductID,
			"error", err,
		)
		return nil, err
	}

	select {
	case res := <-resultChan:
		return res.rec, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolIngestionService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolIngestionService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolIngestionService) Capacity() int {
	return s.pool.Cap()
}
