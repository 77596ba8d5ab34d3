package loan

import (
	"fmt"

	"github.com/google/uuid"
)

// InvalidApplicationError rejects a loan application parameter.
type InvalidApplicationError struct {
	Field  string
	Reason string
}

func (e InvalidApplicationError) Error() string {
	return fmt.Sprintf("invalid application: %s %s", e.Field, e.Reason)
}

// Is matches any InvalidApplicationError when the target has no field set.
func (e InvalidApplicationError) Is(target error) bool {
	t, ok := target.(InvalidApplicationError)
	if !ok {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// InvalidArgumentError rejects a parameter of a lifecycle operation.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s %s", e.Field, e.Reason)
}

func (e InvalidArgumentError) Is(target error) bool {
	t, ok := target.(InvalidArgumentError)
	if !ok {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// NotFoundError indicates a missing loan, or one the caller may not see.
type NotFoundError struct {
	LoanID uuid.UUID
}

func (e NotFoundError) Error() string {
	return "loan not found: " + e.LoanID.String()
}

func (e NotFoundError) Is(target error) bool {
	t, ok := target.(NotFoundError)
	if !ok {
		return false
	}
	if t.LoanID == uuid.Nil {
		return true
	}
	return e.LoanID == t.LoanID
}

// IllegalTransitionError reports an operation attempted from the wrong status.
type IllegalTransitionError struct {
	LoanID    uuid.UUID
	Operation Operation
	Current   Status
	Requested Status
}

func (e IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for loan %s: cannot %s a %s loan (requested %s)",
		e.LoanID, e.Operation, e.Current, e.Requested)
}

func (e IllegalTransitionError) Is(target error) bool {
	t, ok := target.(IllegalTransitionError)
	if !ok {
		return false
	}
	if t.LoanID == uuid.Nil {
		return true
	}
	return e.LoanID == t.LoanID
}

// OverpaymentError is returned when a repayment exceeds the remaining balance.
type OverpaymentError struct {
	LoanID    uuid.UUID
	Amount    int64
	Remaining int64
}

func (e OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %d exceeds remaining balance %d on loan %s", e.Amount, e.Remaining, e.LoanID)
}

func (e OverpaymentError) Is(target error) bool {
	t, ok := target.(OverpaymentError)
	if !ok {
		return false
	}
	if t.LoanID == uuid.Nil {
		return true
	}
	return e.LoanID == t.LoanID
}

// ForbiddenError is returned when the caller's role may not run an operation.
type ForbiddenError struct {
	Role      string
	Operation string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Operation)
}

func (e ForbiddenError) Is(target error) bool {
	_, ok := target.(ForbiddenError)
	return ok
}

// DuplicateRequestError marks a repayment request id that was already applied.
type DuplicateRequestError struct {
	RequestID string
}

func (e DuplicateRequestError) Error() string {
	return "repayment request already applied: " + e.RequestID
}

func (e DuplicateRequestError) Is(target error) bool {
	t, ok := target.(DuplicateRequestError)
	if !ok {
		return false
	}
	return t.RequestID == "" || t.RequestID == e.RequestID
}
