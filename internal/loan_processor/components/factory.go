package components

import (
	"log/slog"

	"github.com/loan-lifecycle-engine/internal/config"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/outbox"
	"github.com/loan-lifecycle-engine/internal/loan_processor/service"
	"github.com/loan-lifecycle-engine/internal/platform/persistence"
)

// CreateRepaymentService wires the repayment pipeline behind a worker pool.
// The returned shutdown releases the pool and is a no-op without one.
func CreateRepaymentService(
	txm persistence.TxManager,
	loans service.LoanRepayer,
	loanLookup LoanLookup,
	paymentRepo ledger.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) (svc service.RepaymentService, shutdown func()) {
	validator := NewRepaymentValidator(paymentRepo, logger)
	failureRecorder := NewFailureRecorder(txm, loanLookup, outboxRepo, logger)

	baseService := service.NewRepaymentService(validator, loans, failureRecorder, logger)

	workerPoolService, err := service.NewWorkerPoolRepaymentService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService, func() {}
	}

	logger.Info("Created worker pool repayment service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService, workerPoolService.Shutdown
}
