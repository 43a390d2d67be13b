// Package telemetry validates sensor samples delivered by device gateways
// and defines the dedupe and real-time cache contracts used on ingestion.
package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/provenance-ledger/internal/domain/ledger"
)

// Reading is one sample from the external feed
type Reading struct {
	DeviceID    string    `json:"device_id"`
	ProductID   string    `json:"product_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	ObservedAt  time.Time `json:"observed_at"`
}

// DedupeKey identifies a delivery of the same sample. Redelivery of the
// (device, product, observedAt) tuple yields the same key.
func (r Reading) DedupeKey() string {
	return "telemetry:" + strings.TrimSpace(r.DeviceID) + "|" + strings.TrimSpace(r.ProductID) + "|" + r.ObservedAt.UTC().Format(time.RFC3339Nano)
}

// Payload builds the ledger payload for r
func (r Reading) Payload(excursion string) ledger.TelemetryPayload {
	return ledger.TelemetryPayload{
		DeviceID:    strings.TrimSpace(r.DeviceID),
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		ObservedAt:  r.ObservedAt.UTC(),
		Excursion:   excursion,
	}
}

// RecordRef points at a stored ledger record
type RecordRef struct {
	ProductID string `json:"product_id"`
	RecordID  int64  `json:"record_id"`
}

// DedupWindow remembers recently ingested samples for a bounded time
type DedupWindow interface {
	Lookup(ctx context.Context, key string) (RecordRef, bool, error)
	Remember(ctx context.Context, key string, ref RecordRef) error
}

// LatestReading is the real-time snapshot kept per device
type LatestReading struct {
	Reading
	RecordID  int64     `json:"record_id"`
	Excursion string    `json:"excursion,omitempty"`
	StoredAt  time.Time `json:"stored_at"`
}

// ReadingCache keeps the most recent sample of each device
type ReadingCache interface {
	Put(ctx context.Context, reading LatestReading) error
	Latest(ctx context.Context, deviceID string) (*LatestReading, error)
}
