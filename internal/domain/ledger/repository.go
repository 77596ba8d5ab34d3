package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository is the append-only payment store. It deliberately has no update or delete.
type Repository interface {
	Append(ctx context.Context, payment *Payment) error
	// History returns the loan's payments oldest first.
	History(ctx context.Context, loanID uuid.UUID) ([]*Payment, error)
	SumByLoan(ctx context.Context, loanID uuid.UUID) (int64, error)
	// ExistsByRequestID reports whether requestID was already applied to the loan.
	ExistsByRequestID(ctx context.Context, loanID uuid.UUID, requestID string) (bool, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrDuplicateRequest indicates the request id was already used on the loan
type ErrDuplicateRequest struct {
	RequestID string
}

func (e ErrDuplicateRequest) Error() string {
	return "duplicate payment request: " + e.RequestID
}

func (e ErrDuplicateRequest) Is(target error) bool {
	t, ok := target.(ErrDuplicateRequest)
	if !ok {
		return false
	}
	return t.RequestID == "" || t.RequestID == e.RequestID
}
