package service

import (
	"context"
	"errors"

	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/registry"
)

var (
	ErrInvalidRepaymentRequest = errors.New("invalid repayment request")
	ErrInvalidRepaymentAmount  = errors.New("repayment amount must be positive")
)

// RepaymentService applies repayment requests taken off the intake topic.
// A nil error acknowledges the message.
type RepaymentService interface {
	ProcessRepayment(ctx context.Context, request *shared.RepaymentRequest) error
}

// RepaymentValidator validates repayment requests before they reach the registry
type RepaymentValidator interface {
	Validate(ctx context.Context, request *shared.RepaymentRequest) error
	// CheckIdempotency reports whether the request id was already applied.
	CheckIdempotency(ctx context.Context, request *shared.RepaymentRequest) (bool, error)
}

// LoanRepayer is the registry's repayment entry point.
type LoanRepayer interface {
	Repay(ctx context.Context, caller shared.Caller, cmd registry.RepayCommand) (*registry.RepaymentResult, error)
}

// FailureRecorder records repayments that were rejected for business reasons
type FailureRecorder interface {
	RecordFailure(ctx context.Context, request *shared.RepaymentRequest, reason shared.RejectionReason, detail string) error
}

var _ LoanRepayer = (*registry.Registry)(nil)
