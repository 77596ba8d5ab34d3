package loan

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is a single loan application and, once disbursed, the debt it created.
// Amounts are minor units. Only the methods below change Status.
type Account struct {
	ID               uuid.UUID  `json:"id"`
	BorrowerID       string     `json:"borrower_id"`
	LoanType         string     `json:"loan_type"`
	Principal        int64      `json:"principal"`
	TenureMonths     int        `json:"tenure_months"`
	CreditScore      int        `json:"credit_score"`
	AnnualRate       float64    `json:"annual_rate"`
	TotalPayable     int64      `json:"total_payable"`
	RemainingBalance *int64     `json:"remaining_balance,omitempty"`
	Status           Status     `json:"status"`
	RejectionReason  *string    `json:"rejection_reason,omitempty"`
	ApprovedBy       *string    `json:"approved_by,omitempty"`
	RejectedBy       *string    `json:"rejected_by,omitempty"`
	DisbursedBy      *string    `json:"disbursed_by,omitempty"`
	AppliedAt        time.Time  `json:"applied_at"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	RejectedAt       *time.Time `json:"rejected_at,omitempty"`
	DisbursedAt      *time.Time `json:"disbursed_at,omitempty"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Application is the validated input of a new loan.
type Application struct {
	BorrowerID   string
	LoanType     string
	Principal    int64
	TenureMonths int
	CreditScore  int
	AnnualRate   float64
	TotalPayable int64
}

// NewAccount opens a loan in APPLIED with its total payable already pinned.
func NewAccount(app Application, now time.Time) (*Account, error) {
	if strings.TrimSpace(app.BorrowerID) == "" {
		return nil, InvalidApplicationError{Field: "borrower_id", Reason: "is required"}
	}
	if app.Principal <= 0 {
		return nil, InvalidApplicationError{Field: "principal", Reason: "must be greater than zero"}
	}
	if app.TotalPayable < app.Principal {
		return nil, InvalidApplicationError{Field: "total_payable", Reason: "must cover the principal"}
	}

	return &Account{
		ID:           uuid.New(),
		BorrowerID:   app.BorrowerID,
		LoanType:     app.LoanType,
		Principal:    app.Principal,
		TenureMonths: app.TenureMonths,
		CreditScore:  app.CreditScore,
		AnnualRate:   app.AnnualRate,
		TotalPayable: app.TotalPayable,
		Status:       StatusApplied,
		AppliedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (a *Account) transition(op Operation, to Status) error {
	if !CanTransition(a.Status, to) {
		return IllegalTransitionError{LoanID: a.ID, Operation: op, Current: a.Status, Requested: to}
	}
	a.Status = to
	return nil
}

// Approve moves an APPLIED loan to APPROVED.
func (a *Account) Approve(by string, now time.Time) error {
	if err := a.transition(OpApprove, StatusApproved); err != nil {
		return err
	}
	a.ApprovedBy = &by
	a.ApprovedAt = &now
	a.UpdatedAt = now
	return nil
}

// Reject terminates an APPLIED loan. The reason must be non-blank.
func (a *Account) Reject(by, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return InvalidArgumentError{Field: "reason", Reason: "must not be empty"}
	}
	if err := a.transition(OpReject, StatusRejected); err != nil {
		return err
	}
	a.RejectionReason = &reason
	a.RejectedBy = &by
	a.RejectedAt = &now
	a.UpdatedAt = now
	return nil
}

// Disburse moves an APPROVED loan to DISBURSED and opens its balance at TotalPayable.
func (a *Account) Disburse(by string, now time.Time) error {
	if err := a.transition(OpDisburse, StatusDisbursed); err != nil {
		return err
	}
	balance := a.TotalPayable
	a.RemainingBalance = &balance
	a.DisbursedBy = &by
	a.DisbursedAt = &now
	a.UpdatedAt = now
	return nil
}

// ApplyPayment reduces the remaining balance by amount. When the balance hits
// exactly zero the loan closes in the same call and closed is true.
func (a *Account) ApplyPayment(amount int64, now time.Time) (closed bool, err error) {
	if a.Status != StatusDisbursed {
		return false, IllegalTransitionError{LoanID: a.ID, Operation: OpRepay, Current: a.Status, Requested: StatusDisbursed}
	}
	if amount <= 0 {
		return false, InvalidArgumentError{Field: "amount", Reason: "must be greater than zero"}
	}
	remaining := a.Remaining()
	if amount > remaining {
		return false, OverpaymentError{LoanID: a.ID, Amount: amount, Remaining: remaining}
	}

	remaining -= amount
	a.RemainingBalance = &remaining
	a.UpdatedAt = now
	if remaining == 0 {
		if err := a.transition(OpRepay, StatusClosed); err != nil {
			return false, err
		}
		a.ClosedAt = &now
		return true, nil
	}
	return false, nil
}

// Remaining returns the outstanding balance, zero before disbursement.
func (a *Account) Remaining() int64 {
	if a.RemainingBalance == nil {
		return 0
	}
	return *a.RemainingBalance
}

// OwnedBy reports whether borrowerID owns the loan.
func (a *Account) OwnedBy(borrowerID string) bool {
	return a.BorrowerID == borrowerID
}
