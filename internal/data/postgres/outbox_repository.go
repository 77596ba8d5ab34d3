package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loan-lifecycle-engine/internal/domain/outbox"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/platform/persistence"
)

const outboxColumns = `id, event_id, loan_id, event_type, payload, status, attempts, created_at, last_attempt_at`

// OutboxRepository stores loan events in loan_outbox until the poller has
// projected and published them.
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
	now     func() time.Time
}

func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
		now:     time.Now,
	}
}

// WithTx binds the repository to tx so events commit with the state change they describe.
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{querier: tx, logger: r.logger, now: r.now}
}

func scanMessage(row rowScanner) (*outbox.Message, error) {
	var m outbox.Message
	if err := row.Scan(
		&m.ID, &m.EventID, &m.LoanID, &m.EventType, &m.Payload,
		&m.Status, &m.Attempts, &m.CreatedAt, &m.LastAttemptAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a pending message and sets its ID. event_id is unique, so an
// event can only be queued once.
func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	err := r.querier.QueryRow(ctx, `
		INSERT INTO loan_outbox (event_id, loan_id, event_type, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		message.EventID, message.LoanID, message.EventType, message.Payload,
		message.Status, message.Attempts, message.CreatedAt,
	).Scan(&message.ID)
	if err != nil {
		r.logger.Error("Failed to queue loan event",
			"event_id", message.EventID.String(),
			"loan_id", message.LoanID.String(),
			"event_type", string(message.EventType),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

// GetPending returns up to limit pending messages in commit order, so the
// events of one loan reach the projection in the order they happened.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	rows, err := r.querier.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM loan_outbox
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`,
		shared.OutboxStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*outbox.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		r.logger.Error("Failed to read pending loan events", "error", err)
		return nil, fmt.Errorf("failed to scan outbox messages: %w", err)
	}
	return messages, nil
}

// UpdateStatus sets the message status. Returns ErrMessageNotFound if no row matched.
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return r.touch(ctx, id, "update outbox message status",
		`UPDATE loan_outbox SET status = $1, last_attempt_at = $2 WHERE id = $3`,
		status, r.now(), id)
}

// IncrementAttempts records one failed publish attempt.
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	return r.touch(ctx, id, "increment outbox message attempts",
		`UPDATE loan_outbox SET attempts = attempts + 1, last_attempt_at = $1 WHERE id = $2`,
		r.now(), id)
}

func (r *OutboxRepository) touch(ctx context.Context, id int64, op, query string, args ...any) error {
	result, err := r.querier.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Outbox write failed", "operation", op, "id", id, "error", err)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}
	return nil
}

// GetByEventID returns the queued message for eventID, or ErrMessageNotFound.
func (r *OutboxRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*outbox.Message, error) {
	message, err := scanMessage(r.querier.QueryRow(ctx, `
		SELECT `+outboxColumns+`
		FROM loan_outbox
		WHERE event_id = $1`,
		eventID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, outbox.ErrMessageNotFound{}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox message by event ID: %w", err)
	}
	return message, nil
}
