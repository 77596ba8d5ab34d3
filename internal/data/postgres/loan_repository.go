// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository can be rebound to a pgx.Tx so the registry can lock, mutate,
// record payments and write outbox rows in one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/platform/persistence"
)

const loanColumns = `id, borrower_id, loan_type, principal, tenure_months, credit_score, annual_rate,
		total_payable, remaining_balance, status, rejection_reason, approved_by, rejected_by, disbursed_by,
		applied_at, approved_at, rejected_at, disbursed_at, closed_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// LoanRepository implements the loan.Repository interface for PostgreSQL
type LoanRepository struct {
	querier persistence.Querier // *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewLoanRepository creates a new PostgreSQL loan repository.
func NewLoanRepository(logger *slog.Logger, db *persistence.PostgresDB) loan.Repository {
	return &LoanRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx.
func (r *LoanRepository) WithTx(tx pgx.Tx) loan.Repository {
	return &LoanRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanLoan(row rowScanner) (*loan.Account, error) {
	var acc loan.Account
	err := row.Scan(
		&acc.ID,
		&acc.BorrowerID,
		&acc.LoanType,
		&acc.Principal,
		&acc.TenureMonths,
		&acc.CreditScore,
		&acc.AnnualRate,
		&acc.TotalPayable,
		&acc.RemainingBalance,
		&acc.Status,
		&acc.RejectionReason,
		&acc.ApprovedBy,
		&acc.RejectedBy,
		&acc.DisbursedBy,
		&acc.AppliedAt,
		&acc.ApprovedAt,
		&acc.RejectedAt,
		&acc.DisbursedAt,
		&acc.ClosedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Create inserts a freshly applied loan.
func (r *LoanRepository) Create(ctx context.Context, acc *loan.Account) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.BorrowerID,
		acc.LoanType,
		acc.Principal,
		acc.TenureMonths,
		acc.CreditScore,
		acc.AnnualRate,
		acc.TotalPayable,
		acc.RemainingBalance,
		acc.Status,
		acc.RejectionReason,
		acc.ApprovedBy,
		acc.RejectedBy,
		acc.DisbursedBy,
		acc.AppliedAt,
		acc.ApprovedAt,
		acc.RejectedAt,
		acc.DisbursedAt,
		acc.ClosedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create loan", "loan_id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to create loan: %w", err)
	}

	return nil
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*loan.Account, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	acc, err := scanLoan(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loan.NotFoundError{LoanID: id}
		}
		r.logger.Error("Failed to get loan", "loan_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	return acc, nil
}

// Update writes back the mutable lifecycle columns. Principal, type and the
// pinned total are never rewritten.
func (r *LoanRepository) Update(ctx context.Context, acc *loan.Account) error {
	query := `
		UPDATE loans
		SET remaining_balance = $1, status = $2, rejection_reason = $3, approved_by = $4, rejected_by = $5,
			disbursed_by = $6, approved_at = $7, rejected_at = $8, disbursed_at = $9, closed_at = $10, updated_at = $11
		WHERE id = $12
	`

	result, err := r.querier.Exec(ctx, query,
		acc.RemainingBalance,
		acc.Status,
		acc.RejectionReason,
		acc.ApprovedBy,
		acc.RejectedBy,
		acc.DisbursedBy,
		acc.ApprovedAt,
		acc.RejectedAt,
		acc.DisbursedAt,
		acc.ClosedAt,
		acc.UpdatedAt,
		acc.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update loan", "loan_id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to update loan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return loan.NotFoundError{LoanID: acc.ID}
	}

	return nil
}

func (r *LoanRepository) list(ctx context.Context, what, query string, args ...any) ([]*loan.Account, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list loans", "by", what, "error", err)
		return nil, fmt.Errorf("failed to list loans by %s: %w", what, err)
	}
	defer rows.Close()

	loans := make([]*loan.Account, 0)
	for rows.Next() {
		acc, err := scanLoan(rows)
		if err != nil {
			r.logger.Error("Failed to scan loan", "error", err)
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, acc)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over loans", "error", err)
		return nil, fmt.Errorf("error iterating over loans: %w", err)
	}

	return loans, nil
}

// ListByStatus returns loans in status ordered by application time, oldest first.
func (r *LoanRepository) ListByStatus(ctx context.Context, status loan.Status, limit, offset int) ([]*loan.Account, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE status = $1 ORDER BY applied_at ASC, id ASC LIMIT $2 OFFSET $3`
	return r.list(ctx, "status", query, status, limit, offset)
}

func (r *LoanRepository) CountByStatus(ctx context.Context, status loan.Status) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM loans WHERE status = $1`, status).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count loans by status", "status", string(status), "error", err)
		return 0, fmt.Errorf("failed to count loans by status: %w", err)
	}
	return count, nil
}

// ListByBorrower returns the borrower's loans, newest application first.
func (r *LoanRepository) ListByBorrower(ctx context.Context, borrowerID string, limit, offset int) ([]*loan.Account, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE borrower_id = $1 ORDER BY applied_at DESC, id ASC LIMIT $2 OFFSET $3`
	return r.list(ctx, "borrower", query, borrowerID, limit, offset)
}

func (r *LoanRepository) CountByBorrower(ctx context.Context, borrowerID string) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM loans WHERE borrower_id = $1`, borrowerID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count borrower loans", "borrower_id", borrowerID, "error", err)
		return 0, fmt.Errorf("failed to count borrower loans: %w", err)
	}
	return count, nil
}

func (r *LoanRepository) ListActiveByBorrower(ctx context.Context, borrowerID string) ([]*loan.Account, error) {
	active := make([]string, 0, 3)
	for _, s := range loan.ActiveStatuses() {
		active = append(active, string(s))
	}
	query := `SELECT ` + loanColumns + ` FROM loans WHERE borrower_id = $1 AND status = ANY($2) ORDER BY applied_at ASC`
	return r.list(ctx, "active borrower", query, borrowerID, active)
}

// CountAllByStatus returns a count for every status, including zero counts.
func (r *LoanRepository) CountAllByStatus(ctx context.Context) (map[loan.Status]int64, error) {
	rows, err := r.querier.Query(ctx, `SELECT status, COUNT(*) FROM loans GROUP BY status`)
	if err != nil {
		r.logger.Error("Failed to count loans", "error", err)
		return nil, fmt.Errorf("failed to count loans: %w", err)
	}
	defer rows.Close()

	counts := make(map[loan.Status]int64)
	for _, s := range loan.AllStatuses() {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			r.logger.Error("Failed to scan loan count", "error", err)
			return nil, fmt.Errorf("failed to scan loan count: %w", err)
		}
		counts[loan.Status(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over loan counts: %w", err)
	}

	return counts, nil
}

// LockForUpdate obtains a row lock on the loan and returns its current state.
// Must be called inside a transaction.
func (r *LoanRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*loan.Account, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	acc, err := scanLoan(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loan.NotFoundError{LoanID: id}
		}
		r.logger.Error("Failed to lock loan for update", "loan_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock loan for update: %w", err)
	}

	return acc, nil
}

// LockBorrower takes a transaction scoped advisory lock keyed by the borrower id.
func (r *LoanRepository) LockBorrower(ctx context.Context, borrowerID string) error {
	_, err := r.querier.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, borrowerID)
	if err != nil {
		r.logger.Error("Failed to lock borrower", "borrower_id", borrowerID, "error", err)
		return fmt.Errorf("failed to lock borrower: %w", err)
	}
	return nil
}
