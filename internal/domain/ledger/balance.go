package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrLedgerCorrupted means the cached balance of a loan disagrees with its
// payment history. It is not a business error and must never be retried or
// repaired automatically.
type ErrLedgerCorrupted struct {
	LoanID   uuid.UUID
	Expected int64
	Cached   int64
}

func (e ErrLedgerCorrupted) Error() string {
	return fmt.Sprintf("ledger corrupted for loan %s: payments imply balance %d, loan records %d",
		e.LoanID, e.Expected, e.Cached)
}

func (e ErrLedgerCorrupted) Is(target error) bool {
	t, ok := target.(ErrLedgerCorrupted)
	if !ok {
		return false
	}
	if t.LoanID == uuid.Nil {
		return true
	}
	return e.LoanID == t.LoanID
}

// BalanceOf derives the outstanding balance from the payment history alone.
func BalanceOf(totalPayable int64, payments []*Payment) int64 {
	var paid int64
	for _, p := range payments {
		paid += p.Amount
	}
	return totalPayable - paid
}

// Reconcile checks total_payable - paid against the cached balance. An
// undisbursed loan has no cached balance and must have no payments.
func Reconcile(loanID uuid.UUID, totalPayable, paid int64, cached *int64) error {
	expected := totalPayable - paid
	if cached == nil {
		if paid != 0 {
			return ErrLedgerCorrupted{LoanID: loanID, Expected: expected, Cached: totalPayable}
		}
		return nil
	}
	if expected != *cached || *cached < 0 || *cached > totalPayable {
		return ErrLedgerCorrupted{LoanID: loanID, Expected: expected, Cached: *cached}
	}
	return nil
}
