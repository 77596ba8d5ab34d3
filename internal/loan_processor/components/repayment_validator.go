package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/loan_processor/service"
)

type RepaymentValidatorImpl struct {
	payments ledger.Repository
	logger   *slog.Logger
}

func NewRepaymentValidator(payments ledger.Repository, logger *slog.Logger) service.RepaymentValidator {
	return &RepaymentValidatorImpl{
		payments: payments,
		logger:   logger,
	}
}

// Validate checks the request is complete before it reaches the registry
func (v *RepaymentValidatorImpl) Validate(_ context.Context, request *shared.RepaymentRequest) error {
	switch {
	case request.RequestID == "":
		return fmt.Errorf("%w: request_id is required", service.ErrInvalidRepaymentRequest)
	case request.LoanID == uuid.Nil:
		return fmt.Errorf("%w: loan_id is required", service.ErrInvalidRepaymentRequest)
	case request.BorrowerID == "":
		return fmt.Errorf("%w: borrower_id is required", service.ErrInvalidRepaymentRequest)
	case request.Amount <= 0:
		return fmt.Errorf("%w: got %d", service.ErrInvalidRepaymentAmount, request.Amount)
	}
	if _, ok := ledger.ParseMethod(request.Method); !ok {
		return fmt.Errorf("%w: unsupported method %q", service.ErrInvalidRepaymentRequest, request.Method)
	}
	return nil
}

// CheckIdempotency checks whether the request id was already applied to the
// requested loan. Request ids of other loans never match.
func (v *RepaymentValidatorImpl) CheckIdempotency(ctx context.Context, request *shared.RepaymentRequest) (bool, error) {
	logger := v.logger
	if request.CorrelationID != "" {
		logger = v.logger.With("correlation_id", request.CorrelationID)
	}

	seen, err := v.payments.ExistsByRequestID(ctx, request.LoanID, request.RequestID)
	if err != nil {
		logger.Error("Failed to check ledger for idempotency", "request_id", request.RequestID, "error", err)
		return false, fmt.Errorf("idempotency check failed for repayment %s: %w", request.RequestID, err)
	}
	if seen {
		logger.Info("Repayment already applied (idempotency)",
			"loan_id", request.LoanID.String(),
			"request_id", request.RequestID,
		)
	}
	return seen, nil
}
