package handler

import (
	"encoding/json"
	"time"

	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/provenance-ledger/internal/provenance"
)

// RegisterProductRequest represents a request to register a product
type RegisterProductRequest struct {
	ID             string     `json:"id,omitempty"`
	Name           string     `json:"name" binding:"required"`
	Category       string     `json:"category"`
	Description    string     `json:"description,omitempty"`
	BatchNumber    string     `json:"batch_number,omitempty"`
	ProductionDate *time.Time `json:"production_date,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
}

// BindRFIDRequest represents a request to bind an RFID tag
type BindRFIDRequest struct {
	RFIDTag string `json:"rfid_tag" binding:"required"`
}

// TransitionRequest represents a lifecycle event
type TransitionRequest struct {
	Event         string     `json:"event" binding:"required"`
	CounterpartID string     `json:"counterpart_id,omitempty"`
	RFIDTag       string     `json:"rfid_tag,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
}

// CheckpointRequest represents a logistics scan
type CheckpointRequest struct {
	Location  string     `json:"location" binding:"required"`
	Note      string     `json:"note,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

// TelemetryRequest represents a sensor sample posted directly by a device
// gateway. Zero is a legal measurement, so the readings are pointers.
type TelemetryRequest struct {
	DeviceID    string    `json:"device_id" binding:"required"`
	Temperature *float64  `json:"temperature" binding:"required"`
	Humidity    *float64  `json:"humidity" binding:"required"`
	Latitude    *float64  `json:"latitude" binding:"required"`
	Longitude   *float64  `json:"longitude" binding:"required"`
	ObservedAt  time.Time `json:"observed_at" binding:"required"`
}

// CorrectionRequest represents a request to suppress a record
type CorrectionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// TimelineQuery represents the timeline filters
type TimelineQuery struct {
	From  string `form:"from"`
	To    string `form:"to"`
	Types string `form:"types"` // Comma separated record types
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Description    string `json:"description,omitempty"`
	BatchNumber    string `json:"batch_number,omitempty"`
	ProducerID     string `json:"producer_id"`
	ProductionDate string `json:"production_date,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	State          string `json:"state"`
	RFIDTag        string `json:"rfid_tag,omitempty"`
	CustodianID    string `json:"custodian_id,omitempty"`
	ConsumerID     string `json:"consumer_id,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// RecordResponse represents a ledger record in API responses
type RecordResponse struct {
	ProductID   string          `json:"product_id"`
	RecordID    int64           `json:"record_id"`
	Type        string          `json:"record_type"`
	ActorID     string          `json:"actor_id"`
	ActorRole   string          `json:"actor_role"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   string          `json:"timestamp"`
	ClaimedAt   string          `json:"claimed_at,omitempty"`
	PrevHash    string          `json:"prev_hash"`
	Hash        string          `json:"hash"`
	Deleted     bool            `json:"is_deleted"`
	CorrectedBy int64           `json:"corrected_by,omitempty"`
}

// TransitionResponse represents the product after a lifecycle change
type TransitionResponse struct {
	Product ProductResponse `json:"product"`
	Record  RecordResponse  `json:"record"`
}

// TraceResponse represents the composed trace view
type TraceResponse struct {
	Product      ProductResponse  `json:"product"`
	CurrentState string           `json:"current_state"`
	Timeline     []RecordResponse `json:"timeline"`
}

// TimelineResponse represents a filtered timeline
type TimelineResponse struct {
	ProductID string           `json:"product_id"`
	Records   []RecordResponse `json:"records"`
}

// LatestReadingResponse represents the newest sample of a device
type LatestReadingResponse struct {
	DeviceID    string  `json:"device_id"`
	ProductID   string  `json:"product_id"`
	RecordID    int64   `json:"record_id"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Excursion   string  `json:"excursion,omitempty"`
	ObservedAt  string  `json:"observed_at"`
	StoredAt    string  `json:"stored_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func mapProductToResponse(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		Category:       p.Category,
		Description:    p.Description,
		BatchNumber:    p.BatchNumber,
		ProducerID:     p.ProducerID,
		ProductionDate: formatOptionalTime(p.ProductionDate),
		ExpiryDate:     formatOptionalTime(p.ExpiryDate),
		State:          string(p.State),
		RFIDTag:        p.RFIDTag,
		CustodianID:    p.CustodianID,
		ConsumerID:     p.ConsumerID,
		CreatedAt:      formatTime(p.CreatedAt),
		UpdatedAt:      formatTime(p.UpdatedAt),
	}
}

func mapRecordToResponse(r *ledger.Record) RecordResponse {
	return RecordResponse{
		ProductID:   r.ProductID,
		RecordID:    r.RecordID,
		Type:        string(r.Type),
		ActorID:     r.ActorID,
		ActorRole:   string(r.ActorRole),
		Payload:     r.Payload,
		Timestamp:   formatTime(r.Timestamp),
		ClaimedAt:   formatOptionalTime(r.ClaimedAt),
		PrevHash:    r.PrevHash,
		Hash:        r.Hash,
		Deleted:     r.Deleted,
		CorrectedBy: r.CorrectedBy,
	}
}

func mapRecordsToResponse(records []*ledger.Record) []RecordResponse {
	out := make([]RecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, mapRecordToResponse(r))
	}
	return out
}

func mapTraceToResponse(t *provenance.Trace) TraceResponse {
	return TraceResponse{
		Product:      mapProductToResponse(t.Product),
		CurrentState: string(t.CurrentState),
		Timeline:     mapRecordsToResponse(t.Timeline),
	}
}

func mapReadingToResponse(r *telemetry.LatestReading) LatestReadingResponse {
	return LatestReadingResponse{
		DeviceID:    r.DeviceID,
		ProductID:   r.ProductID,
		RecordID:    r.RecordID,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Excursion:   r.Excursion,
		ObservedAt:  formatTime(r.ObservedAt),
		StoredAt:    formatTime(r.StoredAt),
	}
}
