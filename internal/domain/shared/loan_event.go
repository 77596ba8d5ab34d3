package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle fact recorded in the outbox
type EventType string

const (
	EventLoanApplied       EventType = "LOAN_APPLIED"
	EventLoanApproved      EventType = "LOAN_APPROVED"
	EventLoanRejected      EventType = "LOAN_REJECTED"
	EventLoanDisbursed     EventType = "LOAN_DISBURSED"
	EventRepaymentRecorded EventType = "REPAYMENT_RECORDED"
	EventLoanClosed        EventType = "LOAN_CLOSED"
	EventRepaymentRejected EventType = "REPAYMENT_REJECTED"
)

// LoanEvent is published to the loan events topic and projected into the timeline collection.
type LoanEvent struct {
	EventID          uuid.UUID  `json:"event_id" bson:"event_id"`
	LoanID           uuid.UUID  `json:"loan_id" bson:"loan_id"`
	BorrowerID       string     `json:"borrower_id" bson:"borrower_id"`
	Type             EventType  `json:"type" bson:"type"`
	Status           string     `json:"status" bson:"status"`
	ActorID          string     `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	Amount           int64      `json:"amount,omitempty" bson:"amount,omitempty"`
	RemainingBalance *int64     `json:"remaining_balance,omitempty" bson:"remaining_balance,omitempty"`
	PaymentID        *uuid.UUID `json:"payment_id,omitempty" bson:"payment_id,omitempty"`
	Reason           string     `json:"reason,omitempty" bson:"reason,omitempty"`
	CorrelationID    string     `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at" bson:"occurred_at"`
}

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// EventStore is the read-side projection of loan events, one document per event.
type EventStore interface {
	// Upsert is a no-op when the event was already projected.
	Upsert(ctx context.Context, event *LoanEvent) error
	ListByLoan(ctx context.Context, loanID uuid.UUID, limit, offset int) ([]*LoanEvent, error)
	CountByLoan(ctx context.Context, loanID uuid.UUID) (int64, error)
}
