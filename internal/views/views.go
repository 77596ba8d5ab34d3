// Package views builds the read models served to borrowers and admins. Views
// never mutate; they read committed loans through the registry, so role and
// ownership rules are applied in one place.
package views

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/interest"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/registry"
)

// LoanReader is the read side of the registry.
type LoanReader interface {
	Get(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*loan.Account, error)
	ListByStatus(ctx context.Context, caller shared.Caller, status loan.Status, page registry.PageRequest) ([]*loan.Account, int64, error)
	ListByBorrower(ctx context.Context, caller shared.Caller, borrowerID string, page registry.PageRequest) ([]*loan.Account, int64, error)
	History(ctx context.Context, caller shared.Caller, loanID uuid.UUID) ([]*ledger.Payment, error)
	StatusCounts(ctx context.Context, caller shared.Caller) (map[loan.Status]int64, error)
}

var _ LoanReader = (*registry.Registry)(nil)

// Page is one page of a listing.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	pages := int(p.Total) / p.PageSize
	if int(p.Total)%p.PageSize > 0 {
		pages++
	}
	return pages
}

// LoanSummary is the list row of a loan.
type LoanSummary struct {
	LoanID           uuid.UUID `json:"loan_id"`
	BorrowerID       string    `json:"borrower_id"`
	LoanType         string    `json:"loan_type"`
	Status           string    `json:"status"`
	Principal        int64     `json:"principal"`
	TenureMonths     int       `json:"tenure_months"`
	CreditScore      int       `json:"credit_score"`
	AnnualRate       float64   `json:"annual_rate"`
	TotalPayable     int64     `json:"total_payable"`
	RemainingBalance *int64    `json:"remaining_balance,omitempty"`
	AppliedAt        time.Time `json:"applied_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func Summarize(acc *loan.Account) LoanSummary {
	return LoanSummary{
		LoanID:           acc.ID,
		BorrowerID:       acc.BorrowerID,
		LoanType:         acc.LoanType,
		Status:           string(acc.Status),
		Principal:        acc.Principal,
		TenureMonths:     acc.TenureMonths,
		CreditScore:      acc.CreditScore,
		AnnualRate:       acc.AnnualRate,
		TotalPayable:     acc.TotalPayable,
		RemainingBalance: acc.RemainingBalance,
		AppliedAt:        acc.AppliedAt,
		UpdatedAt:        acc.UpdatedAt,
	}
}

// RepaymentSchedule is the installment plan of a loan with what has been paid so far.
type RepaymentSchedule struct {
	LoanID       uuid.UUID              `json:"loan_id"`
	Status       string                 `json:"status"`
	AnchoredAt   time.Time              `json:"anchored_at"`
	TotalPayable int64                  `json:"total_payable"`
	TotalPaid    int64                  `json:"total_paid"`
	Remaining    int64                  `json:"remaining"`
	EMIAmount    int64                  `json:"emi_amount"`
	Installments []interest.Installment `json:"installments"`
}

type Views struct {
	loans  LoanReader
	events shared.EventStore
	logger *slog.Logger
}

func NewViews(logger *slog.Logger, loans LoanReader, events shared.EventStore) *Views {
	return &Views{
		loans:  loans,
		events: events,
		logger: logger.With("component", "loan_views"),
	}
}

func summaries(loans []*loan.Account) []LoanSummary {
	out := make([]LoanSummary, 0, len(loans))
	for _, acc := range loans {
		out = append(out, Summarize(acc))
	}
	return out
}

// StatusView lists loans in status for the admin work queue, oldest application first.
func (v *Views) StatusView(ctx context.Context, caller shared.Caller, status loan.Status, page registry.PageRequest) (*Page[LoanSummary], error) {
	page = page.Normalize()
	loans, total, err := v.loans.ListByStatus(ctx, caller, status, page)
	if err != nil {
		return nil, err
	}
	return &Page[LoanSummary]{Items: summaries(loans), Page: page.Page, PageSize: page.PageSize, Total: total}, nil
}

// BorrowerView lists the caller's own loans, newest first.
func (v *Views) BorrowerView(ctx context.Context, caller shared.Caller, page registry.PageRequest) (*Page[LoanSummary], error) {
	page = page.Normalize()
	loans, total, err := v.loans.ListByBorrower(ctx, caller, caller.ID, page)
	if err != nil {
		return nil, err
	}
	return &Page[LoanSummary]{Items: summaries(loans), Page: page.Page, PageSize: page.PageSize, Total: total}, nil
}

// Schedule splits the total payable into monthly installments anchored at
// disbursement, or at application while the loan is not yet disbursed, and
// marks them against the amount repaid.
func (v *Views) Schedule(ctx context.Context, caller shared.Caller, loanID uuid.UUID) (*RepaymentSchedule, error) {
	acc, err := v.loans.Get(ctx, caller, loanID)
	if err != nil {
		return nil, err
	}

	anchor := acc.AppliedAt
	if acc.DisbursedAt != nil {
		anchor = *acc.DisbursedAt
	}

	remaining := acc.TotalPayable
	if acc.RemainingBalance != nil {
		remaining = *acc.RemainingBalance
	}
	paid := acc.TotalPayable - remaining

	installments := interest.MarkPaid(interest.Installments(acc.TotalPayable, acc.TenureMonths, anchor), paid)

	var emi int64
	if acc.TenureMonths > 0 {
		emi = acc.TotalPayable / int64(acc.TenureMonths)
	}

	return &RepaymentSchedule{
		LoanID:       acc.ID,
		Status:       string(acc.Status),
		AnchoredAt:   anchor,
		TotalPayable: acc.TotalPayable,
		TotalPaid:    paid,
		Remaining:    remaining,
		EMIAmount:    emi,
		Installments: installments,
	}, nil
}

// Timeline returns the loan's lifecycle events from the event projection,
// oldest first. The projection is fed asynchronously and may lag the loan.
func (v *Views) Timeline(ctx context.Context, caller shared.Caller, loanID uuid.UUID, page registry.PageRequest) (*Page[*shared.LoanEvent], error) {
	if _, err := v.loans.Get(ctx, caller, loanID); err != nil {
		return nil, err
	}

	page = page.Normalize()
	events, err := v.events.ListByLoan(ctx, loanID, page.Limit(), page.Offset())
	if err != nil {
		v.logger.Error("Failed to read loan timeline", "loan_id", loanID.String(), "error", err)
		return nil, err
	}
	total, err := v.events.CountByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*shared.LoanEvent{}
	}
	return &Page[*shared.LoanEvent]{Items: events, Page: page.Page, PageSize: page.PageSize, Total: total}, nil
}

// Payments is the repayment history of a loan.
func (v *Views) Payments(ctx context.Context, caller shared.Caller, loanID uuid.UUID) ([]*ledger.Payment, error) {
	return v.loans.History(ctx, caller, loanID)
}

// StatusCounts keys the per-status loan counts by status name for the admin dashboard.
func (v *Views) StatusCounts(ctx context.Context, caller shared.Caller) (map[string]int64, error) {
	counts, err := v.loans.StatusCounts(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(counts))
	for _, status := range loan.AllStatuses() {
		out[string(status)] = counts[status]
	}
	return out, nil
}
