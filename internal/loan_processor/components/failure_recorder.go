package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/outbox"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/loan_processor/service"
	"github.com/loan-lifecycle-engine/internal/platform/persistence"
)

// rejectionNamespace derives stable event ids for rejected repayments, so a
// redelivered rejection maps to the event already in the outbox.
var rejectionNamespace = uuid.MustParse("6f1c9a52-4b7e-4d1a-9e35-2c8d7f0b1a64")

// LoanLookup reads the committed loan a rejection refers to.
type LoanLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*loan.Account, error)
}

type FailureRecorderImpl struct {
	txm    persistence.TxManager
	loans  LoanLookup
	outbox outbox.Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewFailureRecorder(txm persistence.TxManager, loans LoanLookup, outboxRepo outbox.Repository, logger *slog.Logger) service.FailureRecorder {
	return &FailureRecorderImpl{
		txm:    txm,
		loans:  loans,
		outbox: outboxRepo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func rejectionEventID(request *shared.RepaymentRequest) uuid.UUID {
	return uuid.NewSHA1(rejectionNamespace, []byte(request.LoanID.String()+"/"+request.RequestID))
}

// RecordFailure writes a REPAYMENT_REJECTED event to the outbox so the
// rejection reaches the loan's timeline and the events topic.
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, request *shared.RepaymentRequest, reason shared.RejectionReason, detail string) error {
	logger := r.logger
	if request.CorrelationID != "" {
		logger = r.logger.With("correlation_id", request.CorrelationID)
	}

	event := &shared.LoanEvent{
		EventID:       rejectionEventID(request),
		LoanID:        request.LoanID,
		BorrowerID:    request.BorrowerID,
		Type:          shared.EventRepaymentRejected,
		ActorID:       request.BorrowerID,
		Amount:        request.Amount,
		Reason:        string(reason),
		CorrelationID: request.CorrelationID,
		OccurredAt:    r.now(),
	}
	if detail != "" {
		event.Reason = string(reason) + ": " + detail
	}

	// Only the owner's loan state is copied onto the event.
	if request.LoanID != uuid.Nil {
		acc, err := r.loans.GetByID(ctx, request.LoanID)
		switch {
		case err == nil && acc.OwnedBy(request.BorrowerID):
			event.Status = string(acc.Status)
			event.RemainingBalance = acc.RemainingBalance
		case err != nil && !errors.Is(err, loan.NotFoundError{}):
			return fmt.Errorf("failed to load loan %s for rejected repayment: %w", request.LoanID, err)
		}
	}

	logger.Info("Recording rejected repayment", "request_id", request.RequestID, "loan_id", request.LoanID.String(), "reason", string(reason))

	return r.txm.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := r.outbox.WithTx(tx)

		existing, err := repo.GetByEventID(ctx, event.EventID)
		if err != nil && !errors.Is(err, outbox.ErrMessageNotFound{}) {
			return err
		}
		if existing != nil {
			logger.Info("Rejected repayment already recorded", "request_id", request.RequestID, "outbox_id", existing.ID)
			return nil
		}

		msg, err := outbox.NewMessage(event)
		if err != nil {
			return fmt.Errorf("failed to encode rejection event: %w", err)
		}
		if err := repo.Create(ctx, msg); err != nil {
			logger.Error("Failed to record rejected repayment", "request_id", request.RequestID, "error", err)
			return err
		}
		return nil
	})
}
