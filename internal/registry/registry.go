// Package registry composes pricing, the lifecycle state machine and the
// repayment ledger into atomic operations. Every mutation of a loan runs under
// an in-process lock keyed by the loan id and inside one database transaction
// that also row-locks the loan, so the loan row, its payments and its outbox
// events always change together.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/outbox"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/platform/locking"
	"github.com/loan-lifecycle-engine/internal/platform/persistence"
)

// MaxActiveLoans is how many APPLIED, APPROVED or DISBURSED loans one borrower may hold.
const MaxActiveLoans = 2

// ApplyCommand is a borrower's loan application. The borrower is the caller.
type ApplyCommand struct {
	LoanType     string
	Principal    int64
	TenureMonths int
	CreditScore  int
}

// RepayCommand applies Amount to LoanID. RequestID is optional and makes the
// call safe to redeliver: a request id is applied at most once.
type RepayCommand struct {
	LoanID    uuid.UUID
	Amount    int64
	Method    string
	RequestID string
}

type RepaymentResult struct {
	Loan    *loan.Account   `json:"loan"`
	Payment *ledger.Payment `json:"payment"`
}

// LedgerReport is the outcome of an explicit ledger check.
type LedgerReport struct {
	LoanID         uuid.UUID `json:"loan_id"`
	Status         string    `json:"status"`
	TotalPayable   int64     `json:"total_payable"`
	TotalPaid      int64     `json:"total_paid"`
	PaymentCount   int       `json:"payment_count"`
	DerivedBalance int64     `json:"derived_balance"`
	CachedBalance  *int64    `json:"cached_balance"`
	Consistent     bool      `json:"consistent"`
}

type Registry struct {
	txm      persistence.TxManager
	loans    loan.Repository
	payments ledger.Repository
	outbox   outbox.Repository
	pricer   Pricer
	locks    *locking.KeyedMutex
	logger   *slog.Logger
	now      func() time.Time
}

func NewRegistry(
	logger *slog.Logger,
	txm persistence.TxManager,
	loans loan.Repository,
	payments ledger.Repository,
	outboxRepo outbox.Repository,
	pricer Pricer,
) *Registry {
	return &Registry{
		txm:      txm,
		loans:    loans,
		payments: payments,
		outbox:   outboxRepo,
		pricer:   pricer,
		locks:    locking.NewKeyedMutex(),
		logger:   logger.With("component", "loan_registry"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func requireRole(caller shared.Caller, role shared.Role, op string) error {
	if caller.ID == "" {
		return shared.ErrMissingCaller
	}
	if caller.Role != role {
		return loan.ForbiddenError{Role: string(caller.Role), Operation: op}
	}
	return nil
}

// Apply prices the application and opens the loan in APPLIED.
func (r *Registry) Apply(ctx context.Context, caller shared.Caller, cmd ApplyCommand) (*loan.Account, error) {
	if err := requireRole(caller, shared.RoleBorrower, "apply for a loan"); err != nil {
		return nil, err
	}

	quote, err := r.pricer.Quote(cmd.Principal, cmd.TenureMonths, cmd.LoanType, cmd.CreditScore)
	if err != nil {
		return nil, err
	}

	acc, err := loan.NewAccount(loan.Application{
		BorrowerID:   caller.ID,
		LoanType:     quote.LoanType,
		Principal:    cmd.Principal,
		TenureMonths: cmd.TenureMonths,
		CreditScore:  cmd.CreditScore,
		AnnualRate:   quote.AnnualRate,
		TotalPayable: quote.TotalPayable,
	}, r.now())
	if err != nil {
		return nil, err
	}

	err = r.txm.ExecuteTx(ctx, func(tx pgx.Tx) error {
		loans := r.loans.WithTx(tx)
		if err := loans.LockBorrower(ctx, caller.ID); err != nil {
			return err
		}

		active, err := loans.ListActiveByBorrower(ctx, caller.ID)
		if err != nil {
			return err
		}
		if len(active) >= MaxActiveLoans {
			return loan.InvalidApplicationError{
				Field:  "borrower_id",
				Reason: fmt.Sprintf("already has %d active loans", len(active)),
			}
		}
		for _, existing := range active {
			if existing.LoanType == acc.LoanType {
				return loan.InvalidApplicationError{
					Field:  "loan_type",
					Reason: "an active " + acc.LoanType + " loan already exists",
				}
			}
		}

		if err := loans.Create(ctx, acc); err != nil {
			return err
		}
		return r.writeEvents(ctx, tx, r.newEvent(ctx, acc, shared.EventLoanApplied, caller.ID))
	})
	if err != nil {
		r.logFailure(ctx, "apply", acc.ID, err)
		return nil, err
	}

	r.logger.Info("Loan applied",
		"loan_id", acc.ID.String(),
		"borrower_id", acc.BorrowerID,
		"loan_type", acc.LoanType,
		"total_payable", acc.TotalPayable,
	)
	return acc, nil
}

func (r *Registry) Approve(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error) {
	if err := requireRole(caller, shared.RoleAdmin, string(loan.OpApprove)); err != nil {
		return nil, err
	}
	return r.mutate(ctx, caller, loanID, loan.OpApprove, func(_ pgx.Tx, acc *loan.Account) ([]*shared.LoanEvent, error) {
		if err := acc.Approve(caller.ID, r.now()); err != nil {
			return nil, err
		}
		return []*shared.LoanEvent{r.newEvent(ctx, acc, shared.EventLoanApproved, caller.ID)}, nil
	})
}

// Reject terminates an APPLIED loan with a mandatory reason.
func (r *Registry) Reject(ctx context.Context, caller shared.Caller, loanID uuid.UUID, reason string) (*loan.Account, error) {
	if err := requireRole(caller, shared.RoleAdmin, string(loan.OpReject)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, loan.InvalidArgumentError{Field: "reason", Reason: "must not be empty"}
	}
	return r.mutate(ctx, caller, loanID, loan.OpReject, func(_ pgx.Tx, acc *loan.Account) ([]*shared.LoanEvent, error) {
		if err := acc.Reject(caller.ID, reason, r.now()); err != nil {
			return nil, err
		}
		event := r.newEvent(ctx, acc, shared.EventLoanRejected, caller.ID)
		event.Reason = *acc.RejectionReason
		return []*shared.LoanEvent{event}, nil
	})
}

// Disburse opens the balance of an APPROVED loan. No money movement is modelled
// here; the LOAN_DISBURSED event is the hand-off to payout systems.
func (r *Registry) Disburse(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error) {
	if err := requireRole(caller, shared.RoleAdmin, string(loan.OpDisburse)); err != nil {
		return nil, err
	}
	return r.mutate(ctx, caller, loanID, loan.OpDisburse, func(_ pgx.Tx, acc *loan.Account) ([]*shared.LoanEvent, error) {
		if err := acc.Disburse(caller.ID, r.now()); err != nil {
			return nil, err
		}
		event := r.newEvent(ctx, acc, shared.EventLoanDisbursed, caller.ID)
		event.Amount = acc.TotalPayable
		return []*shared.LoanEvent{event}, nil
	})
}

// Repay records a payment against a DISBURSED loan and closes the loan when
// the balance reaches zero, all in one transaction.
func (r *Registry) Repay(ctx context.Context, caller shared.Caller, cmd RepayCommand) (*RepaymentResult, error) {
	if err := requireRole(caller, shared.RoleBorrower, string(loan.OpRepay)); err != nil {
		return nil, err
	}
	if cmd.Amount <= 0 {
		return nil, loan.InvalidArgumentError{Field: "amount", Reason: "must be greater than zero"}
	}
	method, ok := ledger.ParseMethod(cmd.Method)
	if !ok {
		return nil, loan.InvalidArgumentError{Field: "method", Reason: "must be one of UPI, DEBIT, CREDIT"}
	}

	var payment *ledger.Payment
	acc, err := r.mutate(ctx, caller, cmd.LoanID, loan.OpRepay, func(tx pgx.Tx, acc *loan.Account) ([]*shared.LoanEvent, error) {
		payments := r.payments.WithTx(tx)
		if cmd.RequestID != "" {
			seen, err := payments.ExistsByRequestID(ctx, acc.ID, cmd.RequestID)
			if err != nil {
				return nil, err
			}
			if seen {
				return nil, loan.DuplicateRequestError{RequestID: cmd.RequestID}
			}
		}

		now := r.now()
		closed, err := acc.ApplyPayment(cmd.Amount, now)
		if err != nil {
			return nil, err
		}

		payment = ledger.NewPayment(acc.ID, cmd.Amount, method, cmd.RequestID, acc.Remaining(), now)
		if err := payments.Append(ctx, payment); err != nil {
			if errors.Is(err, ledger.ErrDuplicateRequest{}) {
				return nil, loan.DuplicateRequestError{RequestID: cmd.RequestID}
			}
			return nil, err
		}

		recorded := r.newEvent(ctx, acc, shared.EventRepaymentRecorded, caller.ID)
		recorded.Amount = payment.Amount
		recorded.PaymentID = &payment.ID
		events := []*shared.LoanEvent{recorded}
		if closed {
			events = append(events, r.newEvent(ctx, acc, shared.EventLoanClosed, caller.ID))
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}

	return &RepaymentResult{Loan: acc, Payment: payment}, nil
}

// mutate runs apply against the row-locked loan and persists the loan and the
// returned events in the same transaction.
func (r *Registry) mutate(
	ctx context.Context,
	caller shared.Caller,
	loanID uuid.UUID,
	op loan.Operation,
	apply func(tx pgx.Tx, acc *loan.Account) ([]*shared.LoanEvent, error),
) (*loan.Account, error) {
	unlock, err := r.locks.Lock(ctx, loanID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *loan.Account
	err = r.txm.ExecuteTx(ctx, func(tx pgx.Tx) error {
		loans := r.loans.WithTx(tx)

		acc, err := loans.LockForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if caller.IsBorrower() && !acc.OwnedBy(caller.ID) {
			return loan.NotFoundError{LoanID: loanID}
		}

		paid, err := r.payments.WithTx(tx).SumByLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if err := ledger.Reconcile(acc.ID, acc.TotalPayable, paid, acc.RemainingBalance); err != nil {
			return err
		}

		events, err := apply(tx, acc)
		if err != nil {
			return err
		}
		if err := loans.Update(ctx, acc); err != nil {
			return err
		}
		if err := r.writeEvents(ctx, tx, events...); err != nil {
			return err
		}

		updated = acc
		return nil
	})
	if err != nil {
		r.logFailure(ctx, string(op), loanID, err)
		return nil, err
	}

	r.logger.Info("Loan updated",
		"operation", string(op),
		"loan_id", loanID.String(),
		"status", string(updated.Status),
		"actor_id", caller.ID,
	)
	return updated, nil
}

func (r *Registry) newEvent(ctx context.Context, acc *loan.Account, eventType shared.EventType, actorID string) *shared.LoanEvent {
	event := &shared.LoanEvent{
		EventID:       uuid.New(),
		LoanID:        acc.ID,
		BorrowerID:    acc.BorrowerID,
		Type:          eventType,
		Status:        string(acc.Status),
		ActorID:       actorID,
		CorrelationID: shared.CorrelationIDFromContext(ctx),
		OccurredAt:    acc.UpdatedAt,
	}
	if acc.RemainingBalance != nil {
		balance := *acc.RemainingBalance
		event.RemainingBalance = &balance
	}
	return event
}

func (r *Registry) writeEvents(ctx context.Context, tx pgx.Tx, events ...*shared.LoanEvent) error {
	repo := r.outbox.WithTx(tx)
	for _, event := range events {
		msg, err := outbox.NewMessage(event)
		if err != nil {
			return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
		}
		if err := repo.Create(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) logFailure(ctx context.Context, op string, loanID uuid.UUID, err error) {
	logger := r.logger
	if correlationID := shared.CorrelationIDFromContext(ctx); correlationID != "" {
		logger = logger.With("correlation_id", correlationID)
	}

	var corrupted ledger.ErrLedgerCorrupted
	if errors.As(err, &corrupted) {
		logger.Error("Ledger inconsistency detected, refusing to mutate loan",
			"operation", op,
			"loan_id", loanID.String(),
			"expected_balance", corrupted.Expected,
			"cached_balance", corrupted.Cached,
		)
		return
	}
	if IsBusinessError(err) {
		logger.Warn("Loan operation rejected", "operation", op, "loan_id", loanID.String(), "error", err)
		return
	}
	logger.Error("Loan operation failed", "operation", op, "loan_id", loanID.String(), "error", err)
}

// IsBusinessError reports whether err is a rule violation the caller caused,
// as opposed to an infrastructure failure or ledger corruption.
func IsBusinessError(err error) bool {
	return errors.Is(err, loan.InvalidApplicationError{}) ||
		errors.Is(err, loan.InvalidArgumentError{}) ||
		errors.Is(err, loan.NotFoundError{}) ||
		errors.Is(err, loan.IllegalTransitionError{}) ||
		errors.Is(err, loan.OverpaymentError{}) ||
		errors.Is(err, loan.ForbiddenError{}) ||
		errors.Is(err, loan.DuplicateRequestError{})
}
