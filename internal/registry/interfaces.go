package registry

import "github.com/loan-lifecycle-engine/internal/domain/interest"

// Pricer prices an application. *interest.Calculator satisfies it.
type Pricer interface {
	Quote(principal int64, tenureMonths int, loanType string, creditScore int) (*interest.Quote, error)
}

var _ Pricer = (*interest.Calculator)(nil)
