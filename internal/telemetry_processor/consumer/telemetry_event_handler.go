package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/provenance-ledger/internal/platform/messaging/producers"
	"github.com/provenance-ledger/internal/telemetry_processor/service"
)

// DLQ reasons
const (
	ReasonUnmarshalFailed = "UNMARSHAL_FAILED"
	ReasonRejected        = "REJECTED"
)

// telemetryMessage is one sample on the feed topic
type telemetryMessage struct {
	telemetry.Reading
	CorrelationID string `json:"correlation_id,omitempty"`
}

// TelemetryEventHandler handles samples consumed from the telemetry feed
type TelemetryEventHandler struct {
	ingestionService service.IngestionService
	producer         producers.DeadLetterPublisher
	logger           *slog.Logger
}

// NewTelemetryEventHandler creates a new handler. producer may be nil when
// no DLQ topic is configured.
func NewTelemetryEventHandler(
	logger *slog.Logger,
	ingestionService service.IngestionService,
	producer producers.DeadLetterPublisher,
) *TelemetryEventHandler {
	return &TelemetryEventHandler{
		ingestionService: ingestionService,
		producer:         producer,
		logger:           logger,
	}
}

// HandleMessage ingests one feed message. Messages that can never succeed
// are parked on the DLQ and acknowledged, or dropped when no DLQ is
// configured. Storage faults and rate limiting are returned so the consumer
// retries the same message.
func (h *TelemetryEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var msg telemetryMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		h.logger.Error("Failed to unmarshal telemetry sample from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		if h.park(ctx, key, value, fmt.Sprintf("%s: %v", ReasonUnmarshalFailed, err)) {
			return nil
		}
		return fmt.Errorf("failed to park unparsable message: %w", err)
	}

	logger := h.logger
	if msg.CorrelationID != "" {
		logger = h.logger.With("correlation_id", msg.CorrelationID)
	}

	rec, err := h.ingestionService.IngestReading(ctx, &msg.Reading)
	if err != nil {
		if shared.IsRetryable(err) || shared.KindOf(err) == shared.KindRateLimited {
			logger.Error("Failed to ingest sample",
				"device_id", msg.DeviceID,
				"product_id", msg.ProductID,
				"error", err,
			)
			return fmt.Errorf("ingesting sample from device %s failed: %w", msg.DeviceID, err)
		}

		logger.Warn("Sample rejected",
			"device_id", msg.DeviceID,
			"product_id", msg.ProductID,
			"kind", shared.KindOf(err),
			"error", err,
		)
		if h.park(ctx, key, value, fmt.Sprintf("%s: %s: %v", ReasonRejected, shared.KindOf(err), err)) {
			return nil
		}
		return fmt.Errorf("failed to park sample from device %s: %w", msg.DeviceID, err)
	}

	logger.Debug("Sample ingested",
		"device_id", msg.DeviceID,
		"product_id", rec.ProductID,
		"record_id", rec.RecordID,
	)
	return nil
}

// park publishes the message to the DLQ and reports whether it may be
// acknowledged. Without a DLQ the message is dropped.
func (h *TelemetryEventHandler) park(ctx context.Context, key, value []byte, reason string) bool {
	if h.producer == nil {
		h.logger.Error("Dropping unprocessable message, no DLQ configured", "message_key", string(key), "reason", reason)
		return true
	}
	if err := h.producer.PublishToDLQ(ctx, string(key), value, reason); err != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"message_key", string(key),
			"reason", reason,
		)
		return false
	}
	h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", reason)
	return true
}
