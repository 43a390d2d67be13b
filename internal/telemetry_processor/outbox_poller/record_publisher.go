package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/outbox"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/platform/messaging/producers"
)

// RecordPublisher delivers one committed record downstream
type RecordPublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// recordPublisher mirrors the record to the archive, publishes it on the
// ledger events topic and marks the message processed. Both sinks accept
// redelivery, so a partial failure is repaired by the next attempt.
type recordPublisher struct {
	outboxRepo outbox.Repository
	archive    ledger.Archive
	events     producers.MessagePublisher
	logger     *slog.Logger
}

// NewRecordPublisher creates a new publisher. events may be nil when no
// event topic is wired.
func NewRecordPublisher(
	outboxRepo outbox.Repository,
	archive ledger.Archive,
	events producers.MessagePublisher,
	logger *slog.Logger,
) RecordPublisher {
	return &recordPublisher{
		outboxRepo: outboxRepo,
		archive:    archive,
		events:     events,
		logger:     logger,
	}
}

func (p *recordPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	rec, err := message.GetRecord()
	if err != nil {
		p.logger.Error("Failed to unmarshal ledger record from outbox payload", "outbox_id", message.ID, "error", err)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	if err := p.archive.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to archive record %s/%d: %w", rec.ProductID, rec.RecordID, err)
	}

	if p.events != nil {
		if err := p.events.Publish(ctx, rec.ProductID, message.Payload); err != nil {
			return fmt.Errorf("failed to publish record %s/%d: %w", rec.ProductID, rec.RecordID, err)
		}
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		return fmt.Errorf("record %s/%d delivered, but failed to mark outbox %d as PROCESSED: %w", rec.ProductID, rec.RecordID, message.ID, err)
	}

	p.logger.Debug("Record archived and published",
		"outbox_id", message.ID,
		"product_id", rec.ProductID,
		"record_id", rec.RecordID,
		"type", rec.Type,
	)
	return nil
}
