package loan

import "strings"

// Status is the lifecycle position of a loan
type Status string

const (
	StatusApplied   Status = "APPLIED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusDisbursed Status = "DISBURSED"
	StatusClosed    Status = "CLOSED"
)

// Operation names the action that requested a transition.
type Operation string

const (
	OpApprove  Operation = "approve"
	OpReject   Operation = "reject"
	OpDisburse Operation = "disburse"
	OpRepay    Operation = "repay"
)

// edges lists every legal transition. Anything absent is illegal.
var edges = map[Status][]Status{
	StatusApplied:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusDisbursed},
	StatusDisbursed: {StatusClosed},
}

// AllStatuses returns the statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusApplied, StatusApproved, StatusRejected, StatusDisbursed, StatusClosed}
}

// ActiveStatuses are the statuses counted against a borrower's open loan limit.
func ActiveStatuses() []Status {
	return []Status{StatusApplied, StatusApproved, StatusDisbursed}
}

func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusApproved, StatusRejected, StatusDisbursed, StatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusClosed
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus normalises raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", InvalidArgumentError{Field: "status", Reason: "must be one of APPLIED, APPROVED, REJECTED, DISBURSED, CLOSED"}
	}
	return s, nil
}
