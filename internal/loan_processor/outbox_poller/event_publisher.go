package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loan-lifecycle-engine/internal/domain/outbox"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/platform/messaging/producers"
)

// EventPublisher delivers one outbox message to the read side and the events topic
type EventPublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

type EventPublisherImpl struct {
	outboxRepo outbox.Repository
	events     shared.EventStore
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

func NewEventPublisher(
	outboxRepo outbox.Repository,
	events shared.EventStore,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo: outboxRepo,
		events:     events,
		producer:   producer,
		logger:     logger,
	}
}

// Publish projects the event into the timeline store, publishes it keyed by
// loan id and marks the message processed. The projection ignores event ids
// it already has; the topic is at-least-once and consumers dedupe on event_id.
func (p *EventPublisherImpl) Publish(ctx context.Context, message *outbox.Message) error {
	event, err := message.LoanEvent()
	if err != nil {
		p.logger.Error("Failed to decode loan event from outbox payload", "outbox_id", message.ID, "error", err)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
		ctx = shared.ContextWithCorrelationID(ctx, event.CorrelationID)
	}

	if err := p.events.Upsert(ctx, event); err != nil {
		return fmt.Errorf("failed to project event %s: %w", event.EventID, err)
	}

	if err := p.producer.Publish(ctx, event.LoanID.String(), event); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "outbox_id", message.ID, "error", err)
		return fmt.Errorf("event %s delivered, but failed to mark outbox %d as PROCESSED: %w", event.EventID, message.ID, err)
	}

	logger.Info("Loan event delivered",
		"outbox_id", message.ID,
		"event_id", event.EventID.String(),
		"event_type", string(event.Type),
		"loan_id", event.LoanID.String(),
	)
	return nil
}
