package memory

import (
	"context"
	"sync"

	"github.com/provenance-ledger/internal/domain/ledger"
)

type archiveKey struct {
	productID string
	recordID  int64
}

// Archive is a ledger.Archive kept in memory
type Archive struct {
	mu       sync.RWMutex
	seen     map[archiveKey]struct{}
	byDevice map[string][]*ledger.Record
}

var _ ledger.Archive = (*Archive)(nil)

func NewArchive() *Archive {
	return &Archive{
		seen:     make(map[archiveKey]struct{}),
		byDevice: make(map[string][]*ledger.Record),
	}
}

// Put stores rec once; mirroring the same record again is a no-op
func (a *Archive) Put(ctx context.Context, rec *ledger.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := archiveKey{rec.ProductID, rec.RecordID}
	if _, ok := a.seen[k]; ok {
		return nil
	}
	a.seen[k] = struct{}{}

	if rec.Type != ledger.RecordTypeTelemetry {
		return nil
	}
	var p ledger.TelemetryPayload
	if err := rec.DecodePayload(&p); err != nil {
		return err
	}
	a.byDevice[p.DeviceID] = append(a.byDevice[p.DeviceID], rec.Clone())
	return nil
}

// ListByDevice returns a device's records in arrival order
func (a *Archive) ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]*ledger.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	recs := a.byDevice[deviceID]
	if offset >= len(recs) {
		return []*ledger.Record{}, nil
	}
	recs = recs[offset:]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]*ledger.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out, nil
}

func (a *Archive) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int64(len(a.byDevice[deviceID])), nil
}
