package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/registry"
)

type RepaymentServiceImpl struct {
	validator       RepaymentValidator
	loans           LoanRepayer
	failureRecorder FailureRecorder
	logger          *slog.Logger
}

func NewRepaymentService(
	validator RepaymentValidator,
	loans LoanRepayer,
	failureRecorder FailureRecorder,
	logger *slog.Logger,
) RepaymentService {
	return &RepaymentServiceImpl{
		validator:       validator,
		loans:           loans,
		failureRecorder: failureRecorder,
		logger:          logger,
	}
}

type rejection struct {
	target error
	reason shared.RejectionReason
}

// rejections are the registry errors that will never succeed on redelivery.
var rejections = []rejection{
	{loan.NotFoundError{}, shared.RejectionLoanNotFound},
	{loan.IllegalTransitionError{}, shared.RejectionIllegalTransition},
	{loan.OverpaymentError{}, shared.RejectionOverpayment},
	{loan.InvalidArgumentError{}, shared.RejectionInvalidRequest},
	{loan.ForbiddenError{}, shared.RejectionInvalidRequest},
	{shared.ErrMissingCaller, shared.RejectionInvalidRequest},
}

func rejectionFor(err error) (shared.RejectionReason, bool) {
	for _, r := range rejections {
		if errors.Is(err, r.target) {
			return r.reason, true
		}
	}
	return "", false
}

// ProcessRepayment applies one repayment request on behalf of its borrower.
// Rejected requests are recorded and acknowledged; infrastructure errors are
// returned so the message is redelivered.
func (s *RepaymentServiceImpl) ProcessRepayment(ctx context.Context, request *shared.RepaymentRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
		ctx = shared.ContextWithCorrelationID(ctx, request.CorrelationID)
	}

	logger.Info("Processing repayment", "request_id", request.RequestID, "loan_id", request.LoanID.String())

	if err := s.validator.Validate(ctx, request); err != nil {
		logger.Error("Repayment validation failed", "request_id", request.RequestID, "error", err)

		reason := shared.RejectionInvalidRequest
		if errors.Is(err, ErrInvalidRepaymentAmount) {
			reason = shared.RejectionInvalidAmount
		}
		if recordErr := s.failureRecorder.RecordFailure(ctx, request, reason, err.Error()); recordErr != nil {
			logger.Error("Failed to record repayment failure", "request_id", request.RequestID, "error", recordErr)
			return recordErr
		}
		return nil
	}

	skip, err := s.validator.CheckIdempotency(ctx, request)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	caller := shared.Caller{ID: request.BorrowerID, Role: shared.RoleBorrower}
	result, err := s.loans.Repay(ctx, caller, registry.RepayCommand{
		LoanID:    request.LoanID,
		Amount:    request.Amount,
		Method:    request.Method,
		RequestID: request.RequestID,
	})
	if err != nil {
		if errors.Is(err, loan.DuplicateRequestError{}) {
			logger.Info("Repayment already applied (idempotency)", "request_id", request.RequestID)
			return nil
		}

		if reason, ok := rejectionFor(err); ok {
			logger.Warn("Repayment rejected", "request_id", request.RequestID, "reason", string(reason), "error", err)
			if recordErr := s.failureRecorder.RecordFailure(ctx, request, reason, err.Error()); recordErr != nil {
				logger.Error("Failed to record repayment failure", "request_id", request.RequestID, "error", recordErr)
				return recordErr
			}
			return nil
		}

		return fmt.Errorf("repayment %s failed: %w", request.RequestID, err)
	}

	logger.Info("Repayment applied",
		"request_id", request.RequestID,
		"loan_id", request.LoanID.String(),
		"status", string(result.Loan.Status),
		"remaining_balance", result.Loan.Remaining(),
	)
	return nil
}
