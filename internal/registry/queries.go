package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
)

// Get returns a committed loan snapshot. A borrower asking for someone
// else's loan gets NotFoundError.
func (r *Registry) Get(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error) {
	if caller.ID == "" {
		return nil, shared.ErrMissingCaller
	}

	acc, err := r.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if caller.IsBorrower() && !acc.OwnedBy(caller.ID) {
		return nil, loan.NotFoundError{LoanID: loanID}
	}
	return acc, nil
}

// ListByStatus is the admin work queue: loans in status, oldest application first.
func (r *Registry) ListByStatus(ctx context.Context, caller shared.Caller, status loan.Status, page PageRequest) ([]*loan.Account, int64, error) {
	if err := requireRole(caller, shared.RoleAdmin, "list loans by status"); err != nil {
		return nil, 0, err
	}
	if !status.Valid() {
		return nil, 0, loan.InvalidArgumentError{Field: "status", Reason: "unknown status " + string(status)}
	}

	loans, err := r.loans.ListByStatus(ctx, status, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	total, err := r.loans.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// ListByBorrower returns borrowerID's loans, newest first. Borrowers may only list their own.
func (r *Registry) ListByBorrower(ctx context.Context, caller shared.Caller, borrowerID string, page PageRequest) ([]*loan.Account, int64, error) {
	if caller.ID == "" {
		return nil, 0, shared.ErrMissingCaller
	}
	if caller.IsBorrower() && borrowerID != caller.ID {
		return nil, 0, loan.ForbiddenError{Role: string(caller.Role), Operation: "list another borrower's loans"}
	}
	if borrowerID == "" {
		return nil, 0, loan.InvalidArgumentError{Field: "borrower_id", Reason: "is required"}
	}

	loans, err := r.loans.ListByBorrower(ctx, borrowerID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	total, err := r.loans.CountByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// History returns the loan's payments, oldest first.
func (r *Registry) History(ctx context.Context, caller shared.Caller, loanID uuid.UUID) ([]*ledger.Payment, error) {
	if _, err := r.Get(ctx, caller, loanID); err != nil {
		return nil, err
	}
	return r.payments.History(ctx, loanID)
}

// StatusCounts returns the number of loans in every status.
func (r *Registry) StatusCounts(ctx context.Context, caller shared.Caller) (map[loan.Status]int64, error) {
	if err := requireRole(caller, shared.RoleAdmin, "view loan statistics"); err != nil {
		return nil, err
	}
	return r.loans.CountAllByStatus(ctx)
}

// VerifyLedger recomputes the balance from the payment history and compares it
// with the loan's cached balance. A mismatch is returned as
// ledger.ErrLedgerCorrupted together with the report.
func (r *Registry) VerifyLedger(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*LedgerReport, error) {
	if err := requireRole(caller, shared.RoleAdmin, "verify a ledger"); err != nil {
		return nil, err
	}

	acc, err := r.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	payments, err := r.payments.History(ctx, loanID)
	if err != nil {
		return nil, err
	}

	derived := ledger.BalanceOf(acc.TotalPayable, payments)
	report := &LedgerReport{
		LoanID:         acc.ID,
		Status:         string(acc.Status),
		TotalPayable:   acc.TotalPayable,
		TotalPaid:      acc.TotalPayable - derived,
		PaymentCount:   len(payments),
		DerivedBalance: derived,
		CachedBalance:  acc.RemainingBalance,
	}

	if err := ledger.Reconcile(acc.ID, acc.TotalPayable, report.TotalPaid, acc.RemainingBalance); err != nil {
		var corrupted ledger.ErrLedgerCorrupted
		if errors.As(err, &corrupted) {
			r.logger.Error("Ledger verification failed",
				"loan_id", loanID.String(),
				"expected_balance", corrupted.Expected,
				"cached_balance", corrupted.Cached,
			)
		}
		return report, err
	}

	report.Consistent = true
	return report, nil
}
