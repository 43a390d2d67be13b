package outbox

import (
	"encoding/json"
	"time"

	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/shared"
)

// Message carries a committed ledger record to downstream consumers. It is
// written in the same transaction as the record it describes.
type Message struct {
	ID            int64               `json:"id"`
	ProductID     string              `json:"product_id"`
	RecordID      int64               `json:"record_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(rec *ledger.Record) (*Message, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	return &Message{
		ProductID: rec.ProductID,
		RecordID:  rec.RecordID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetRecord extracts the ledger record from the payload
func (m *Message) GetRecord() (*ledger.Record, error) {
	var rec ledger.Record
	if err := json.Unmarshal(m.Payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
