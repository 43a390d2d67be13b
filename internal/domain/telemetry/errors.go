package telemetry

import (
	"fmt"

	"github.com/provenance-ledger/internal/domain/shared"
)

// ErrInvalidSample indicates a sample outside the plausibility bounds
type ErrInvalidSample struct {
	Field  string
	Value  float64
	Reason string
}

func (e ErrInvalidSample) Error() string {
	if e.Reason == "out of range" {
		return fmt.Sprintf("invalid sample: %s %v out of range", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid sample: %s %s", e.Field, e.Reason)
}

func (e ErrInvalidSample) Kind() shared.ErrorKind { return shared.KindInvalidSample }

// Is implements the errors.Is interface for ErrInvalidSample
func (e ErrInvalidSample) Is(target error) bool {
	t, ok := target.(ErrInvalidSample)
	if !ok {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// ErrRateLimited indicates a device exceeding its sample rate
type ErrRateLimited struct {
	DeviceID string
}

func (e ErrRateLimited) Error() string {
	return "sample rate exceeded for device: " + e.DeviceID
}

func (e ErrRateLimited) Kind() shared.ErrorKind { return shared.KindRateLimited }
