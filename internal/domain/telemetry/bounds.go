package telemetry

import (
	"math"
	"strings"
	"time"
)

// Excursion labels for samples outside the cold-chain band
const (
	ExcursionAbove = "above"
	ExcursionBelow = "below"
)

// Bounds are the plausibility limits a sample must satisfy to be recorded
type Bounds struct {
	MinTemperature float64
	MaxTemperature float64
	MinHumidity    float64
	MaxHumidity    float64
	MaxClockSkew   time.Duration // How far observedAt may lie in the future
}

// DefaultBounds returns the physical plausibility limits
func DefaultBounds() Bounds {
	return Bounds{
		MinTemperature: -40,
		MaxTemperature: 60,
		MinHumidity:    0,
		MaxHumidity:    100,
		MaxClockSkew:   5 * time.Minute,
	}
}

// Validate checks r against the bounds. now anchors the clock skew check.
func (b Bounds) Validate(r Reading, now time.Time) error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return ErrInvalidSample{Field: "device_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.ProductID) == "" {
		return ErrInvalidSample{Field: "product_id", Reason: "must not be empty"}
	}
	if r.ObservedAt.IsZero() {
		return ErrInvalidSample{Field: "observed_at", Reason: "must be set"}
	}
	if b.MaxClockSkew > 0 && r.ObservedAt.After(now.Add(b.MaxClockSkew)) {
		return ErrInvalidSample{Field: "observed_at", Reason: "lies in the future"}
	}

	checks := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"temperature", r.Temperature, b.MinTemperature, b.MaxTemperature},
		{"humidity", r.Humidity, b.MinHumidity, b.MaxHumidity},
		{"latitude", r.Latitude, -90, 90},
		{"longitude", r.Longitude, -180, 180},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return ErrInvalidSample{Field: c.field, Value: c.value, Reason: "must be a finite number"}
		}
		if c.value < c.min || c.value > c.max {
			return ErrInvalidSample{Field: c.field, Value: c.value, Reason: "out of range"}
		}
	}
	return nil
}

// ExcursionBand is the temperature range a cold chain must stay within.
// Samples outside it are still valid and recorded, but flagged.
type ExcursionBand struct {
	Min float64
	Max float64
}

// Classify returns the excursion label for temperature, empty when inside
func (e ExcursionBand) Classify(temperature float64) string {
	switch {
	case temperature > e.Max:
		return ExcursionAbove
	case temperature < e.Min:
		return ExcursionBelow
	}
	return ""
}
