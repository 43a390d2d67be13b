package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/provenance-ledger/internal/domain/telemetry"
)

// DedupWindow remembers ingested sample keys in a bounded LRU whose
// entries expire after ttl
type DedupWindow struct {
	lru *expirable.LRU[string, telemetry.RecordRef]
}

var _ telemetry.DedupWindow = (*DedupWindow)(nil)

func NewDedupWindow(size int, ttl time.Duration) *DedupWindow {
	return &DedupWindow{lru: expirable.NewLRU[string, telemetry.RecordRef](size, nil, ttl)}
}

func (d *DedupWindow) Lookup(ctx context.Context, key string) (telemetry.RecordRef, bool, error) {
	ref, ok := d.lru.Get(key)
	return ref, ok, nil
}

func (d *DedupWindow) Remember(ctx context.Context, key string, ref telemetry.RecordRef) error {
	d.lru.Add(key, ref)
	return nil
}

// ReadingCache keeps the latest reading per device for ttl
type ReadingCache struct {
	lru *expirable.LRU[string, telemetry.LatestReading]
}

var _ telemetry.ReadingCache = (*ReadingCache)(nil)

func NewReadingCache(size int, ttl time.Duration) *ReadingCache {
	return &ReadingCache{lru: expirable.NewLRU[string, telemetry.LatestReading](size, nil, ttl)}
}

// Put keeps reading unless a newer observation is already cached
func (c *ReadingCache) Put(ctx context.Context, reading telemetry.LatestReading) error {
	if cur, ok := c.lru.Peek(reading.DeviceID); ok && cur.ObservedAt.After(reading.ObservedAt) {
		return nil
	}
	c.lru.Add(reading.DeviceID, reading)
	return nil
}

// Latest returns nil when the device has no live reading
func (c *ReadingCache) Latest(ctx context.Context, deviceID string) (*telemetry.LatestReading, error) {
	r, ok := c.lru.Get(deviceID)
	if !ok {
		return nil, nil
	}
	return &r, nil
}
