package outbox

import (
	"context"
	"strconv"

	"github.com/provenance-ledger/internal/domain/shared"
)

// Repository manages transactional outbox message persistence. Messages are
// created by the record store inside the append transaction, so the
// repository only exposes the poller side.
type Repository interface {
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

func (e ErrMessageNotFound) Kind() shared.ErrorKind { return shared.KindNotFound }
