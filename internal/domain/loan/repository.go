package loan

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines loan persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	Update(ctx context.Context, account *Account) error

	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Account, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	ListByBorrower(ctx context.Context, borrowerID string, limit, offset int) ([]*Account, error)
	CountByBorrower(ctx context.Context, borrowerID string) (int64, error)
	// ListActiveByBorrower returns the borrower's loans in ActiveStatuses.
	ListActiveByBorrower(ctx context.Context, borrowerID string) ([]*Account, error)
	CountAllByStatus(ctx context.Context) (map[Status]int64, error)

	// LockForUpdate acquires a row lock held until the surrounding transaction ends
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	// LockBorrower serialises applications of one borrower for the active-loan rules
	LockBorrower(ctx context.Context, borrowerID string) error
	WithTx(tx pgx.Tx) Repository
}
