// Package product holds the registry's product entity and the lifecycle
// state machine that governs it.
package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/provenance-ledger/internal/domain/shared"
)

// Product is a tracked physical item. Identity and attributes are fixed at
// registration; the lifecycle fields are a cached projection of the
// product's transition records and are only changed through Apply.
type Product struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	Description    string     `json:"description,omitempty"`
	BatchNumber    string     `json:"batch_number,omitempty"`
	ProducerID     string     `json:"producer_id"`
	ProductionDate *time.Time `json:"production_date,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`

	State       State     `json:"state"`
	RFIDTag     string    `json:"rfid_tag,omitempty"`
	CustodianID string    `json:"custodian_id,omitempty"`
	ConsumerID  string    `json:"consumer_id,omitempty"`
	Version     int64     `json:"version"` // Number of applied transitions
	UpdatedAt   time.Time `json:"updated_at"`
}

// Attributes are the caller-supplied static fields of a new product
type Attributes struct {
	ID             string
	Name           string
	Category       string
	Description    string
	BatchNumber    string
	ProductionDate *time.Time
	ExpiryDate     *time.Time
}

// NewProduct validates attrs and builds an unregistered product owned by
// producerID. The caller applies the registration change to bring it to
// StateCreated.
func NewProduct(producerID string, attrs Attributes, now time.Time) (*Product, error) {
	name := strings.TrimSpace(attrs.Name)
	if name == "" {
		return nil, shared.ErrInvalidInput{Field: "name", Reason: "must not be empty"}
	}
	if producerID == "" {
		return nil, shared.ErrInvalidInput{Field: "producer_id", Reason: "must not be empty"}
	}
	if attrs.ProductionDate != nil && attrs.ExpiryDate != nil && attrs.ExpiryDate.Before(*attrs.ProductionDate) {
		return nil, shared.ErrInvalidInput{Field: "expiry_date", Reason: "must not precede production_date"}
	}

	id := strings.TrimSpace(attrs.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return &Product{
		ID:             id,
		Name:           name,
		Category:       strings.TrimSpace(attrs.Category),
		Description:    attrs.Description,
		BatchNumber:    attrs.BatchNumber,
		ProducerID:     producerID,
		ProductionDate: utcPtr(attrs.ProductionDate),
		ExpiryDate:     utcPtr(attrs.ExpiryDate),
		CreatedAt:      now.UTC(),
		State:          StateNone,
		UpdatedAt:      now.UTC(),
	}, nil
}

// Clone returns a deep copy so callers never share a mutable product
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.ProductionDate = copyTime(p.ProductionDate)
	c.ExpiryDate = copyTime(p.ExpiryDate)
	return &c
}

// IsCustodian reports whether actorID currently holds the product
func (p *Product) IsCustodian(actorID string) bool {
	return actorID != "" && p.CustodianID == actorID
}

// IsProducer reports whether actorID registered the product
func (p *Product) IsProducer(actorID string) bool {
	return actorID != "" && p.ProducerID == actorID
}

// IsPurchaser reports whether actorID bought the product
func (p *Product) IsPurchaser(actorID string) bool {
	return actorID != "" && p.ConsumerID == actorID
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
