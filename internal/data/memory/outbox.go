package memory

import (
	"context"
	"time"

	"github.com/provenance-ledger/internal/domain/outbox"
	"github.com/provenance-ledger/internal/domain/shared"
)

// GetPending implements outbox.Repository
func (s *Store) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*outbox.Message
	for _, m := range s.outbox {
		if m.Status != shared.OutboxStatusPending {
			continue
		}
		c := *m
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// UpdateStatus implements outbox.Repository
func (s *Store) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.message(id)
	if m == nil {
		return outbox.ErrMessageNotFound{ID: id}
	}
	m.Status = status
	now := time.Now()
	m.LastAttemptAt = &now
	return nil
}

// IncrementAttempts implements outbox.Repository
func (s *Store) IncrementAttempts(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.message(id)
	if m == nil {
		return outbox.ErrMessageNotFound{ID: id}
	}
	m.IncrementAttempts()
	return nil
}

func (s *Store) message(id int64) *outbox.Message {
	// ids are assigned densely from 1
	if id < 1 || id > int64(len(s.outbox)) {
		return nil
	}
	return s.outbox[id-1]
}
