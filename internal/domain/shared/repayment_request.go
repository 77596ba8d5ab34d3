package shared

import (
	"time"

	"github.com/google/uuid"
)

// RepaymentRequest is the Kafka message an external payment channel sends
// once a borrower's payment has settled.
type RepaymentRequest struct {
	RequestID     string    `json:"request_id"`
	LoanID        uuid.UUID `json:"loan_id"`
	BorrowerID    string    `json:"borrower_id"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// RejectionReason categorises why an asynchronous repayment was not applied.
type RejectionReason string

const (
	RejectionInvalidRequest    RejectionReason = "INVALID_REQUEST"
	RejectionLoanNotFound      RejectionReason = "LOAN_NOT_FOUND"
	RejectionIllegalTransition RejectionReason = "LOAN_NOT_DISBURSED"
	RejectionOverpayment       RejectionReason = "OVERPAYMENT"
	RejectionInvalidAmount     RejectionReason = "INVALID_AMOUNT"
)
