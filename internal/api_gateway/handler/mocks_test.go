package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/registry"
	"github.com/loan-lifecycle-engine/internal/views"
	"github.com/stretchr/testify/mock"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) account(args mock.Arguments) (*loan.Account, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Account), args.Error(1)
}

func (m *MockLoanService) Apply(ctx context.Context, caller shared.Caller, cmd registry.ApplyCommand) (*loan.Account, error) {
	return m.account(m.Called(ctx, caller, cmd))
}

func (m *MockLoanService) Approve(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error) {
	return m.account(m.Called(ctx, caller, loanID))
}

func (m *MockLoanService) Reject(ctx context.Context, caller shared.Caller, loanID uuid.UUID, reason string) (*loan.Account, error) {
	return m.account(m.Called(ctx, caller, loanID, reason))
}

func (m *MockLoanService) Disburse(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error) {
	return m.account(m.Called(ctx, caller, loanID))
}

func (m *MockLoanService) Repay(ctx context.Context, caller shared.Caller, cmd registry.RepayCommand) (*registry.RepaymentResult, error) {
	args := m.Called(ctx, caller, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.RepaymentResult), args.Error(1)
}

func (m *MockLoanService) Get(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error) {
	return m.account(m.Called(ctx, caller, loanID))
}

func (m *MockLoanService) VerifyLedger(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*registry.LedgerReport, error) {
	args := m.Called(ctx, caller, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.LedgerReport), args.Error(1)
}

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) StatusView(ctx context.Context, caller shared.Caller, status loan.Status, page registry.PageRequest) (*views.Page[views.LoanSummary], error) {
	args := m.Called(ctx, caller, status, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*views.Page[views.LoanSummary]), args.Error(1)
}

func (m *MockQueryService) BorrowerView(ctx context.Context, caller shared.Caller, page registry.PageRequest) (*views.Page[views.LoanSummary], error) {
	args := m.Called(ctx, caller, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*views.Page[views.LoanSummary]), args.Error(1)
}

func (m *MockQueryService) Schedule(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*views.RepaymentSchedule, error) {
	args := m.Called(ctx, caller, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*views.RepaymentSchedule), args.Error(1)
}

func (m *MockQueryService) Timeline(ctx context.Context, caller shared.Caller, loanID uuid.UUID, page registry.PageRequest) (*views.Page[*shared.LoanEvent], error) {
	args := m.Called(ctx, caller, loanID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*views.Page[*shared.LoanEvent]), args.Error(1)
}

func (m *MockQueryService) Payments(ctx context.Context, caller shared.Caller, loanID uuid.UUID) ([]*ledger.Payment, error) {
	args := m.Called(ctx, caller, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Payment), args.Error(1)
}

func (m *MockQueryService) StatusCounts(ctx context.Context, caller shared.Caller) (map[string]int64, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

type MockRepaymentService struct {
	mock.Mock
}

func (m *MockRepaymentService) SubmitRepayment(ctx context.Context, caller shared.Caller, loanID uuid.UUID, amount int64, method, requestID string) (*shared.RepaymentRequest, error) {
	args := m.Called(ctx, caller, loanID, amount, method, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.RepaymentRequest), args.Error(1)
}
