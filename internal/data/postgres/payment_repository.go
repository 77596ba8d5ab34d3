package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/platform/persistence"
)

const (
	uniqueViolation = "23505"

	loanRequestConstraint = "loan_payments_loan_request_key"
)

// PaymentRepository implements ledger.Repository on the append-only loan_payments table.
type PaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *PaymentRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &PaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append records the payment and fills in its sequence number. A repeated
// request id on the same loan surfaces as ledger.ErrDuplicateRequest.
func (r *PaymentRepository) Append(ctx context.Context, payment *ledger.Payment) error {
	query := `
		INSERT INTO loan_payments (id, loan_id, amount, method, request_id, applied_at, resulting_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`

	err := r.querier.QueryRow(ctx, query,
		payment.ID,
		payment.LoanID,
		payment.Amount,
		payment.Method,
		payment.RequestID,
		payment.AppliedAt,
		payment.ResultingBalance,
	).Scan(&payment.Sequence)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation &&
			pgErr.ConstraintName == loanRequestConstraint && payment.RequestID != nil {
			return ledger.ErrDuplicateRequest{RequestID: *payment.RequestID}
		}
		r.logger.Error("Failed to append payment",
			"loan_id", payment.LoanID.String(),
			"payment_id", payment.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to append payment: %w", err)
	}

	return nil
}

// History returns every payment of the loan in application order.
func (r *PaymentRepository) History(ctx context.Context, loanID uuid.UUID) ([]*ledger.Payment, error) {
	query := `
		SELECT id, loan_id, seq, amount, method, request_id, applied_at, resulting_balance
		FROM loan_payments
		WHERE loan_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.querier.Query(ctx, query, loanID)
	if err != nil {
		r.logger.Error("Failed to get payment history", "loan_id", loanID.String(), "error", err)
		return nil, fmt.Errorf("failed to get payment history: %w", err)
	}
	defer rows.Close()

	payments := make([]*ledger.Payment, 0)
	for rows.Next() {
		var p ledger.Payment
		if err := rows.Scan(
			&p.ID,
			&p.LoanID,
			&p.Sequence,
			&p.Amount,
			&p.Method,
			&p.RequestID,
			&p.AppliedAt,
			&p.ResultingBalance,
		); err != nil {
			r.logger.Error("Failed to scan payment", "error", err)
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, &p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over payments", "error", err)
		return nil, fmt.Errorf("error iterating over payments: %w", err)
	}

	return payments, nil
}

// SumByLoan returns the total amount paid against the loan.
func (r *PaymentRepository) SumByLoan(ctx context.Context, loanID uuid.UUID) (int64, error) {
	var total int64
	err := r.querier.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM loan_payments WHERE loan_id = $1`, loanID).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to sum payments", "loan_id", loanID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return total, nil
}

func (r *PaymentRepository) ExistsByRequestID(ctx context.Context, loanID uuid.UUID, requestID string) (bool, error) {
	var exists bool
	err := r.querier.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM loan_payments WHERE loan_id = $1 AND request_id = $2)`,
		loanID, requestID,
	).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check payment request id",
			"loan_id", loanID.String(),
			"request_id", requestID,
			"error", err,
		)
		return false, fmt.Errorf("failed to check payment request id: %w", err)
	}
	return exists, nil
}
