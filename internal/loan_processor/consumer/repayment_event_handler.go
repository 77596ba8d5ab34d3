package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/loan_processor/service"
	"github.com/loan-lifecycle-engine/internal/platform/messaging/producers"
)

// RepaymentEventHandler handles repayment request messages from Kafka
type RepaymentEventHandler struct {
	repaymentService service.RepaymentService
	dlq              producers.DeadLetterPublisher
	logger           *slog.Logger
}

// NewRepaymentEventHandler creates a new handler. dlq may be nil.
func NewRepaymentEventHandler(
	logger *slog.Logger,
	repaymentService service.RepaymentService,
	dlq producers.DeadLetterPublisher,
) *RepaymentEventHandler {
	return &RepaymentEventHandler{
		repaymentService: repaymentService,
		dlq:              dlq,
		logger:           logger,
	}
}

// HandleMessage decodes one repayment request and applies it. A nil return
// commits the offset.
func (h *RepaymentEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.RepaymentRequest
	if err := json.Unmarshal(value, &request); err != nil {
		const unmarshalErrorMsg = "Failed to unmarshal repayment request from Kafka message"
		h.logger.Error(unmarshalErrorMsg, "error", err, "message_key", string(key))

		if h.dlq != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			dlqErr := h.dlq.PublishToDLQ(ctx, string(key), value, dlqReason)
			if dlqErr == nil {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key))
				return nil
			}
			h.logger.Error("Failed to publish message to DLQ after unmarshal error",
				"dlq_error", dlqErr,
				"original_error", err,
				"message_key", string(key),
			)
		}
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received repayment request",
		"request_id", request.RequestID,
		"loan_id", request.LoanID.String(),
		"amount", request.Amount,
		"method", request.Method,
	)

	if err := h.repaymentService.ProcessRepayment(ctx, &request); err != nil {
		logger.Error("Failed to process repayment", "request_id", request.RequestID, "error", err)
		return fmt.Errorf("processing repayment %s failed: %w", request.RequestID, err)
	}

	logger.Info("Repayment request handled", "request_id", request.RequestID)
	return nil
}
