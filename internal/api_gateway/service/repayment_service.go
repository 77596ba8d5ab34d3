package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/platform/messaging/producers"
)

// RepaymentServiceImpl publishes repayment requests keyed by loan id, so the
// processor sees one loan's repayments in submission order.
type RepaymentServiceImpl struct {
	loans    LoanService
	producer producers.MessagePublisher
	logger   *slog.Logger
}

func NewRepaymentService(logger *slog.Logger, loans LoanService, producer producers.MessagePublisher) RepaymentService {
	return &RepaymentServiceImpl{
		loans:    loans,
		producer: producer,
		logger:   logger.With("component", "repayment_service"),
	}
}

// SubmitRepayment rejects what can be rejected up front (role, ownership,
// status, amount, method). The overpayment check needs the row lock and is
// left to the processor.
func (s *RepaymentServiceImpl) SubmitRepayment(ctx context.Context, caller shared.Caller, loanID uuid.UUID, amount int64, method, requestID string) (*shared.RepaymentRequest, error) {
	if caller.ID == "" {
		return nil, shared.ErrMissingCaller
	}
	if !caller.IsBorrower() {
		return nil, loan.ForbiddenError{Role: string(caller.Role), Operation: string(loan.OpRepay)}
	}
	if amount <= 0 {
		return nil, loan.InvalidArgumentError{Field: "amount", Reason: "must be greater than zero"}
	}
	parsed, ok := ledger.ParseMethod(method)
	if !ok {
		return nil, loan.InvalidArgumentError{Field: "method", Reason: "must be one of UPI, DEBIT, CREDIT"}
	}

	acc, err := s.loans.Get(ctx, caller, loanID)
	if err != nil {
		return nil, err
	}
	if acc.Status != loan.StatusDisbursed {
		return nil, loan.IllegalTransitionError{
			LoanID:    acc.ID,
			Operation: loan.OpRepay,
			Current:   acc.Status,
			Requested: loan.StatusDisbursed,
		}
	}

	if requestID == "" {
		requestID = uuid.New().String()
	}
	req := &shared.RepaymentRequest{
		RequestID:     requestID,
		LoanID:        loanID,
		BorrowerID:    caller.ID,
		Amount:        amount,
		Method:        string(parsed),
		CorrelationID: shared.CorrelationIDFromContext(ctx),
		Timestamp:     time.Now().UTC(),
	}

	if err := s.producer.Publish(ctx, loanID.String(), req); err != nil {
		s.logger.Error("Failed to publish repayment request",
			"loan_id", loanID.String(),
			"request_id", requestID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Repayment request queued",
		"loan_id", loanID.String(),
		"request_id", requestID,
		"amount", amount,
		"method", string(parsed),
	)
	return req, nil
}
