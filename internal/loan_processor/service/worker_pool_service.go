package service

import (
	"context"
	"log/slog"

	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolRepaymentService runs repayments on a bounded ants pool. The
// caller still waits for the outcome so the offset is only committed after
// the repayment is durable.
type WorkerPoolRepaymentService struct {
	baseService RepaymentService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolRepaymentService(
	baseService RepaymentService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolRepaymentService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolRepaymentService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ProcessRepayment submits the request to the pool and waits for the result.
func (s *WorkerPoolRepaymentService) ProcessRepayment(ctx context.Context, request *shared.RepaymentRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Debug("Submitting repayment to worker pool", "request_id", request.RequestID, "loan_id", request.LoanID.String())

	resultChan := make(chan error, 1)
	requestCopy := *request

	err := s.pool.Submit(func() {
		resultChan <- s.baseService.ProcessRepayment(ctx, &requestCopy)
	})
	if err != nil {
		logger.Error("Failed to submit repayment to worker pool", "request_id", request.RequestID, "error", err)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolRepaymentService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

func (s *WorkerPoolRepaymentService) Running() int {
	return s.pool.Running()
}

func (s *WorkerPoolRepaymentService) Capacity() int {
	return s.pool.Cap()
}
