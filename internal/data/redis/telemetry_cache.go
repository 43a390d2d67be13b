// Package redis keeps the telemetry dedupe window and the latest reading of
// each device in Redis so every ingestion worker shares them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/redis/go-redis/v9"
)

const (
	dedupPrefix   = "provenance:dedup:"
	readingPrefix = "provenance:reading:"
)

// DedupWindow is a telemetry.DedupWindow whose entries expire after ttl
type DedupWindow struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ telemetry.DedupWindow = (*DedupWindow)(nil)

func NewDedupWindow(logger *slog.Logger, client redis.Cmdable, ttl time.Duration) *DedupWindow {
	return &DedupWindow{client: client, ttl: ttl, logger: logger}
}

func (d *DedupWindow) Lookup(ctx context.Context, key string) (telemetry.RecordRef, bool, error) {
	var ref telemetry.RecordRef
	raw, err := d.client.Get(ctx, dedupPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ref, false, nil
		}
		d.logger.Error("Failed to look up dedupe key", "key", key, "error", err)
		return ref, false, fmt.Errorf("failed to look up dedupe key: %w", err)
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return ref, false, fmt.Errorf("failed to decode dedupe entry: %w", err)
	}
	return ref, true, nil
}

func (d *DedupWindow) Remember(ctx context.Context, key string, ref telemetry.RecordRef) error {
	raw, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("failed to encode dedupe entry: %w", err)
	}
	if err := d.client.Set(ctx, dedupPrefix+key, raw, d.ttl).Err(); err != nil {
		d.logger.Error("Failed to remember dedupe key", "key", key, "error", err)
		return fmt.Errorf("failed to remember dedupe key: %w", err)
	}
	return nil
}

// putNewer stores a reading only if no later observation is cached.
// ARGV: observed_at in microseconds, reading JSON, ttl in milliseconds.
var putNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'observed_at')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'observed_at', ARGV[1], 'reading', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// ReadingCache is a telemetry.ReadingCache stored as one hash per device
type ReadingCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ telemetry.ReadingCache = (*ReadingCache)(nil)

func NewReadingCache(logger *slog.Logger, client redis.Cmdable, ttl time.Duration) *ReadingCache {
	return &ReadingCache{client: client, ttl: ttl, logger: logger}
}

// Put keeps reading unless a newer observation is already cached
func (c *ReadingCache) Put(ctx context.Context, reading telemetry.LatestReading) error {
	raw, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	keys := []string{readingPrefix + reading.DeviceID}
	err = putNewer.Run(ctx, c.client, keys, reading.ObservedAt.UnixMicro(), raw, c.ttl.Milliseconds()).Err()
	if err != nil {
		c.logger.Error("Failed to cache reading", "device_id", reading.DeviceID, "error", err)
		return fmt.Errorf("failed to cache reading: %w", err)
	}
	return nil
}

// Latest returns nil when the device has no live reading
func (c *ReadingCache) Latest(ctx context.Context, deviceID string) (*telemetry.LatestReading, error) {
	raw, err := c.client.HGet(ctx, readingPrefix+deviceID, "reading").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		c.logger.Error("Failed to read cached reading", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to read cached reading: %w", err)
	}

	var reading telemetry.LatestReading
	if err := json.Unmarshal(raw, &reading); err != nil {
		return nil, fmt.Errorf("failed to decode cached reading: %w", err)
	}
	return &reading, nil
}
