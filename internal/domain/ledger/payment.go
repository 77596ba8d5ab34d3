package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Method is the channel a repayment arrived through. The ledger does not
// interpret it beyond checking it is one of the known values.
type Method string

const (
	MethodUPI    Method = "UPI"
	MethodDebit  Method = "DEBIT"
	MethodCredit Method = "CREDIT"
)

// ParseMethod normalises raw input. ok is false for empty or unknown values.
func ParseMethod(raw string) (Method, bool) {
	m := Method(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case MethodUPI, MethodDebit, MethodCredit:
		return m, true
	}
	return "", false
}

// Payment is an immutable repayment record. Once appended it is never updated or removed.
type Payment struct {
	ID               uuid.UUID `json:"id"`
	LoanID           uuid.UUID `json:"loan_id"`
	Sequence         int64     `json:"sequence"`
	Amount           int64     `json:"amount"`
	Method           Method    `json:"method"`
	RequestID        *string   `json:"request_id,omitempty"`
	AppliedAt        time.Time `json:"applied_at"`
	ResultingBalance int64     `json:"resulting_balance"`
}

// NewPayment builds the record of amount applied to loanID leaving resultingBalance.
func NewPayment(loanID uuid.UUID, amount int64, method Method, requestID string, resultingBalance int64, now time.Time) *Payment {
	p := &Payment{
		ID:               uuid.New(),
		LoanID:           loanID,
		Amount:           amount,
		Method:           method,
		AppliedAt:        now,
		ResultingBalance: resultingBalance,
	}
	if requestID != "" {
		p.RequestID = &requestID
	}
	return p
}
