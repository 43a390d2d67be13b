// Package data selects the storage adapters a binary runs on. The postgres
// driver keeps records in PostgreSQL and mirrors them to MongoDB; the memory
// driver keeps everything in process. Redis backs the dedupe window and the
// latest reading cache when configured, in-process LRUs otherwise.
package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/provenance-ledger/internal/config"
	"github.com/provenance-ledger/internal/data/memory"
	"github.com/provenance-ledger/internal/data/mongo"
	"github.com/provenance-ledger/internal/data/postgres"
	"github.com/provenance-ledger/internal/data/redis"
	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/outbox"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/provenance-ledger/internal/platform/persistence"
	"github.com/provenance-ledger/internal/provenance"
)

// limiterIdle is how long a quiet device keeps its rate limiter
const limiterIdle = 10 * time.Minute

// Backends holds the adapters and the connections behind them
type Backends struct {
	Store   ledger.Store
	Outbox  outbox.Repository
	Archive ledger.Archive
	Window  telemetry.DedupWindow
	Cache   telemetry.ReadingCache

	pg     *persistence.PostgresDB
	mongo  *persistence.MongoDB
	redis  *goredis.Client
	logger *slog.Logger
}

// Open connects the adapters selected by cfg. On failure every connection
// opened so far is closed again.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (b *Backends, err error) {
	b = &Backends{logger: logger}
	defer func() {
		if err != nil {
			_ = b.Close(context.Background())
			b = nil
		}
	}()

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		store := memory.NewStore()
		b.Store, b.Outbox = store, store
		b.Archive = memory.NewArchive()
		logger.Warn("Using in-memory storage, records are lost on exit")
	case config.StorageDriverPostgres:
		b.pg, err = persistence.NewPostgresDB(ctx, logger, &cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		store := postgres.NewStore(logger.With("component", "postgres_store"), b.pg.Pool())
		b.Store, b.Outbox = store, store.Outbox()

		b.mongo, err = persistence.NewMongoDB(ctx, logger, &cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		archive := mongo.NewArchiveRepository(logger.With("component", "archive"), b.mongo.Database(), cfg.MongoDB.ArchiveCollection)
		if err = archive.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create archive indexes: %w", err)
		}
		b.Archive = archive
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	b.redis, err = persistence.NewRedisClient(ctx, logger, &cfg.Redis)
	if err != nil {
		return nil, err
	}
	if b.redis != nil {
		b.Window = redis.NewDedupWindow(logger.With("component", "dedup_window"), b.redis, cfg.Telemetry.DedupTTL)
		b.Cache = redis.NewReadingCache(logger.With("component", "reading_cache"), b.redis, cfg.Redis.ReadingTTL)
	} else {
		b.Window = memory.NewDedupWindow(cfg.Telemetry.DedupWindowSize, cfg.Telemetry.DedupTTL)
		b.Cache = memory.NewReadingCache(cfg.Telemetry.DedupWindowSize, cfg.Redis.ReadingTTL)
	}

	return b, nil
}

// Options returns the core options for the opened adapters
func (b *Backends) Options(cfg *config.TelemetryConfig) provenance.Options {
	return provenance.Options{
		Now: time.Now,
		Bounds: telemetry.Bounds{
			MinTemperature: cfg.MinTemperature,
			MaxTemperature: cfg.MaxTemperature,
			MinHumidity:    cfg.MinHumidity,
			MaxHumidity:    cfg.MaxHumidity,
			MaxClockSkew:   cfg.MaxClockSkew,
		},
		Band:    &telemetry.ExcursionBand{Min: cfg.ExcursionMin, Max: cfg.ExcursionMax},
		Window:  b.Window,
		Cache:   b.Cache,
		Limiter: telemetry.NewLimiter(cfg.RatePerSecond, cfg.RateBurst, cfg.DedupWindowSize, limiterIdle),
		Archive: b.Archive,
	}
}

// Core wires the provenance components over the adapters
func (b *Backends) Core(cfg *config.Config) *provenance.Core {
	return provenance.New(b.Store, b.logger, b.Options(&cfg.Telemetry))
}

// Ping checks every open connection. The memory driver is always ready.
func (b *Backends) Ping(ctx context.Context) error {
	var errs []error
	if b.pg != nil {
		errs = append(errs, b.pg.Ping(ctx))
	}
	if b.mongo != nil {
		errs = append(errs, b.mongo.Ping(ctx))
	}
	if b.redis != nil {
		if err := b.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("failed to ping Redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every open connection
func (b *Backends) Close(ctx context.Context) error {
	var errs []error
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if b.mongo != nil {
		if err := b.mongo.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb: %w", err))
		}
	}
	if b.pg != nil {
		b.pg.Close()
	}
	return errors.Join(errs...)
}
