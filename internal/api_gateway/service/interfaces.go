package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/registry"
	"github.com/loan-lifecycle-engine/internal/views"
)

// LoanService is the synchronous lifecycle API. *registry.Registry implements it.
type LoanService interface {
	Apply(ctx context.Context, caller shared.Caller, cmd registry.ApplyCommand) (*loan.Account, error)
	Approve(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error)
	Reject(ctx context.Context, caller shared.Caller, loanID uuid.UUID, reason string) (*loan.Account, error)
	Disburse(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error)
	// Repay applies a payment immediately. Returns DuplicateRequestError for a
	// request id that was already applied.
	Repay(ctx context.Context, caller shared.Caller, cmd registry.RepayCommand) (*registry.RepaymentResult, error)
	Get(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error)
	// VerifyLedger returns the report together with ErrLedgerCorrupted on mismatch.
	VerifyLedger(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*registry.LedgerReport, error)
}

// QueryService serves the read models. *views.Views implements it.
type QueryService interface {
	StatusView(ctx context.Context, caller shared.Caller, status loan.Status, page registry.PageRequest) (*views.Page[views.LoanSummary], error)
	BorrowerView(ctx context.Context, caller shared.Caller, page registry.PageRequest) (*views.Page[views.LoanSummary], error)
	Schedule(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*views.RepaymentSchedule, error)
	Timeline(ctx context.Context, caller shared.Caller, loanID uuid.UUID, page registry.PageRequest) (*views.Page[*shared.LoanEvent], error)
	Payments(ctx context.Context, caller shared.Caller, loanID uuid.UUID) ([]*ledger.Payment, error)
	StatusCounts(ctx context.Context, caller shared.Caller) (map[string]int64, error)
}

// RepaymentService queues repayments for the loan processor.
type RepaymentService interface {
	// SubmitRepayment validates the request against the committed loan and
	// publishes it. The returned request carries the assigned request id.
	SubmitRepayment(ctx context.Context, caller shared.Caller, loanID uuid.UUID, amount int64, method, requestID string) (*shared.RepaymentRequest, error)
}

var (
	_ LoanService  = (*registry.Registry)(nil)
	_ QueryService = (*views.Views)(nil)
)
