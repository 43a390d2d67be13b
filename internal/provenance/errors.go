package provenance

import "github.com/provenance-ledger/internal/domain/shared"

// ErrNoReading indicates a device without a live reading
type ErrNoReading struct {
	DeviceID string
}

func (e ErrNoReading) Error() string {
	return "no recent reading for device: " + e.DeviceID
}

func (e ErrNoReading) Kind() shared.ErrorKind { return shared.KindNotFound }
