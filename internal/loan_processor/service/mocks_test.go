package service

import (
	"context"

	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/registry"
	"github.com/stretchr/testify/mock"
)

type MockRepaymentValidator struct {
	mock.Mock
}

func (m *MockRepaymentValidator) Validate(ctx context.Context, request *shared.RepaymentRequest) error {
	return m.Called(ctx, request).Error(0)
}

func (m *MockRepaymentValidator) CheckIdempotency(ctx context.Context, request *shared.RepaymentRequest) (bool, error) {
	args := m.Called(ctx, request)
	return args.Bool(0), args.Error(1)
}

type MockLoanRepayer struct {
	mock.Mock
}

func (m *MockLoanRepayer) Repay(ctx context.Context, caller shared.Caller, cmd registry.RepayCommand) (*registry.RepaymentResult, error) {
	args := m.Called(ctx, caller, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.RepaymentResult), args.Error(1)
}

type MockFailureRecorder struct {
	mock.Mock
}

func (m *MockFailureRecorder) RecordFailure(ctx context.Context, request *shared.RepaymentRequest, reason shared.RejectionReason, detail string) error {
	return m.Called(ctx, request, reason, detail).Error(0)
}

type MockRepaymentService struct {
	mock.Mock
}

func (m *MockRepaymentService) ProcessRepayment(ctx context.Context, request *shared.RepaymentRequest) error {
	return m.Called(ctx, request).Error(0)
}
