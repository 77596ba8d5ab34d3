package handler

import (
	"time"

	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
)

// ApplyLoanRequest is a borrower's application. The credit score range is
// checked by pricing so it is reported as INVALID_APPLICATION.
type ApplyLoanRequest struct {
	LoanType     string `json:"loan_type" binding:"required,loan_type"`
	Principal    int64  `json:"principal" binding:"required,gt=0,lte=1000000000000000"`
	TenureMonths int    `json:"tenure_months" binding:"required,gt=0,lte=480"`
	CreditScore  int    `json:"credit_score" binding:"required"`
}

type RejectLoanRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// RepayLoanRequest may come as JSON or as query parameters.
type RepayLoanRequest struct {
	Amount    int64  `json:"amount" form:"amount" binding:"required,gt=0"`
	Method    string `json:"method" form:"method" binding:"required,payment_method"`
	RequestID string `json:"request_id,omitempty" form:"request_id" binding:"omitempty,max=128"`
}

type PaginationParams struct {
	Page     int `form:"page,default=1" binding:"min=1,max=100000"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

type StatusQuery struct {
	PaginationParams
	Status string `form:"status" binding:"required"`
}

type LoanResponse struct {
	ID               string  `json:"id"`
	BorrowerID       string  `json:"borrower_id"`
	LoanType         string  `json:"loan_type"`
	Principal        int64   `json:"principal"`
	TenureMonths     int     `json:"tenure_months"`
	CreditScore      int     `json:"credit_score"`
	AnnualRate       float64 `json:"annual_rate"`
	TotalPayable     int64   `json:"total_payable"`
	RemainingBalance *int64  `json:"remaining_balance"`
	Status           string  `json:"status"`
	RejectionReason  *string `json:"rejection_reason,omitempty"`
	ApprovedBy       *string `json:"approved_by,omitempty"`
	RejectedBy       *string `json:"rejected_by,omitempty"`
	DisbursedBy      *string `json:"disbursed_by,omitempty"`
	AppliedAt        string  `json:"applied_at"`
	ApprovedAt       string  `json:"approved_at,omitempty"`
	RejectedAt       string  `json:"rejected_at,omitempty"`
	DisbursedAt      string  `json:"disbursed_at,omitempty"`
	ClosedAt         string  `json:"closed_at,omitempty"`
	UpdatedAt        string  `json:"updated_at"`
}

type PaymentResponse struct {
	ID               string  `json:"id"`
	LoanID           string  `json:"loan_id"`
	Sequence         int64   `json:"sequence"`
	Amount           int64   `json:"amount"`
	Method           string  `json:"method"`
	RequestID        *string `json:"request_id,omitempty"`
	ResultingBalance int64   `json:"resulting_balance"`
	AppliedAt        string  `json:"applied_at"`
}

type RepaymentResponse struct {
	Loan    LoanResponse    `json:"loan"`
	Payment PaymentResponse `json:"payment"`
}

// RepaymentAcceptedResponse acknowledges a queued repayment.
type RepaymentAcceptedResponse struct {
	RequestID string `json:"request_id"`
	LoanID    string `json:"loan_id"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
	Status    string `json:"status"`
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toLoanResponse(acc *loan.Account) LoanResponse {
	return LoanResponse{
		ID:               acc.ID.String(),
		BorrowerID:       acc.BorrowerID,
		LoanType:         acc.LoanType,
		Principal:        acc.Principal,
		TenureMonths:     acc.TenureMonths,
		CreditScore:      acc.CreditScore,
		AnnualRate:       acc.AnnualRate,
		TotalPayable:     acc.TotalPayable,
		RemainingBalance: acc.RemainingBalance,
		Status:           string(acc.Status),
		RejectionReason:  acc.RejectionReason,
		ApprovedBy:       acc.ApprovedBy,
		RejectedBy:       acc.RejectedBy,
		DisbursedBy:      acc.DisbursedBy,
		AppliedAt:        formatTime(&acc.AppliedAt),
		ApprovedAt:       formatTime(acc.ApprovedAt),
		RejectedAt:       formatTime(acc.RejectedAt),
		DisbursedAt:      formatTime(acc.DisbursedAt),
		ClosedAt:         formatTime(acc.ClosedAt),
		UpdatedAt:        formatTime(&acc.UpdatedAt),
	}
}

func toPaymentResponse(p *ledger.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID.String(),
		LoanID:           p.LoanID.String(),
		Sequence:         p.Sequence,
		Amount:           p.Amount,
		Method:           string(p.Method),
		RequestID:        p.RequestID,
		ResultingBalance: p.ResultingBalance,
		AppliedAt:        formatTime(&p.AppliedAt),
	}
}

func toPaymentResponses(payments []*ledger.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return out
}
