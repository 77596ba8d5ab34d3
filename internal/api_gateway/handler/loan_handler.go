package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/api_gateway/middleware"
	"github.com/loan-lifecycle-engine/internal/api_gateway/service"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/loan-lifecycle-engine/internal/registry"
)

type LoanHandler struct {
	loans      service.LoanService
	queries    service.QueryService
	repayments service.RepaymentService
	logger     *slog.Logger
}

func NewLoanHandler(logger *slog.Logger, loans service.LoanService, queries service.QueryService, repayments service.RepaymentService) *LoanHandler {
	return &LoanHandler{
		loans:      loans,
		queries:    queries,
		repayments: repayments,
		logger:     logger.With("component", "loan_handler"),
	}
}

func (h *LoanHandler) caller(c *gin.Context) (shared.Caller, bool) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		RespondUnauthorized(c, "Caller identity is missing")
		return shared.Caller{}, false
	}
	return caller, true
}

func (h *LoanHandler) loanID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid loan ID format", FieldError{Field: "id", Message: "must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func bindPage(c *gin.Context) (registry.PageRequest, bool) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBindingError(c, err)
		return registry.PageRequest{}, false
	}
	return registry.PageRequest{Page: params.Page, PageSize: params.PageSize}, true
}

// Apply handles POST /loans/apply
func (h *LoanHandler) Apply(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req ApplyLoanRequest
	if err := bindStrictJSON(c, &req); err != nil {
		respondBindingError(c, err)
		return
	}

	acc, err := h.loans.Apply(c.Request.Context(), caller, registry.ApplyCommand{
		LoanType:     req.LoanType,
		Principal:    req.Principal,
		TenureMonths: req.TenureMonths,
		CreditScore:  req.CreditScore,
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondCreated(c, toLoanResponse(acc))
}

// GetByID handles GET /loans/:id
func (h *LoanHandler) GetByID(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}

	acc, err := h.loans.Get(c.Request.Context(), caller, id)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, toLoanResponse(acc))
}

// Approve handles POST /loans/:id/approve
func (h *LoanHandler) Approve(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}

	acc, err := h.loans.Approve(c.Request.Context(), caller, id)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, toLoanResponse(acc))
}

// Reject handles POST /loans/:id/reject
func (h *LoanHandler) Reject(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}

	var req RejectLoanRequest
	if err := bindStrictJSON(c, &req); err != nil {
		respondBindingError(c, err)
		return
	}

	acc, err := h.loans.Reject(c.Request.Context(), caller, id, req.Reason)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, toLoanResponse(acc))
}

// Disburse handles POST /loans/:id/disburse
func (h *LoanHandler) Disburse(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}

	acc, err := h.loans.Disburse(c.Request.Context(), caller, id)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, toLoanResponse(acc))
}

func bindRepayment(c *gin.Context) (RepayLoanRequest, bool) {
	var req RepayLoanRequest
	var err error
	if c.Request.ContentLength > 0 {
		err = bindStrictJSON(c, &req)
	} else {
		err = c.ShouldBindQuery(&req)
	}
	if err != nil {
		respondBindingError(c, err)
		return req, false
	}
	return req, true
}

// Repay handles POST /loans/:id/repay and applies the payment synchronously.
func (h *LoanHandler) Repay(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}
	req, ok := bindRepayment(c)
	if !ok {
		return
	}

	res, err := h.loans.Repay(c.Request.Context(), caller, registry.RepayCommand{
		LoanID:    id,
		Amount:    req.Amount,
		Method:    req.Method,
		RequestID: req.RequestID,
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, RepaymentResponse{
		Loan:    toLoanResponse(res.Loan),
		Payment: toPaymentResponse(res.Payment),
	})
}

// SubmitRepayment handles POST /loans/:id/repayments. The repayment is queued
// for the loan processor and the outcome shows up in the loan's events.
func (h *LoanHandler) SubmitRepayment(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}
	req, ok := bindRepayment(c)
	if !ok {
		return
	}

	queued, err := h.repayments.SubmitRepayment(c.Request.Context(), caller, id, req.Amount, req.Method, req.RequestID)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondAccepted(c, RepaymentAcceptedResponse{
		RequestID: queued.RequestID,
		LoanID:    queued.LoanID.String(),
		Amount:    queued.Amount,
		Method:    queued.Method,
		Status:    "QUEUED",
	})
}

// ListByStatus handles GET /loans?status=
func (h *LoanHandler) ListByStatus(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var query StatusQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindingError(c, err)
		return
	}
	status, err := loan.ParseStatus(query.Status)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	page, err := h.queries.StatusView(c.Request.Context(), caller, status, registry.PageRequest{
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondWithPaginatedData(c, http.StatusOK, page.Items, page.Page, page.PageSize, page.Total)
}

// ListMine handles GET /loans/my
func (h *LoanHandler) ListMine(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	pageReq, ok := bindPage(c)
	if !ok {
		return
	}

	page, err := h.queries.BorrowerView(c.Request.Context(), caller, pageReq)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondWithPaginatedData(c, http.StatusOK, page.Items, page.Page, page.PageSize, page.Total)
}

// Stats handles GET /loans/stats
func (h *LoanHandler) Stats(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	counts, err := h.queries.StatusCounts(c.Request.Context(), caller)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, counts)
}

// Payments handles GET /loans/:id/payments
func (h *LoanHandler) Payments(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}

	payments, err := h.queries.Payments(c.Request.Context(), caller, id)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, toPaymentResponses(payments))
}

// Schedule handles GET /loans/:id/schedule
func (h *LoanHandler) Schedule(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}

	schedule, err := h.queries.Schedule(c.Request.Context(), caller, id)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, schedule)
}

// Events handles GET /loans/:id/events
func (h *LoanHandler) Events(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}
	pageReq, ok := bindPage(c)
	if !ok {
		return
	}

	page, err := h.queries.Timeline(c.Request.Context(), caller, id, pageReq)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondWithPaginatedData(c, http.StatusOK, page.Items, page.Page, page.PageSize, page.Total)
}

// VerifyLedger handles GET /loans/:id/ledger/verify. A mismatch answers 500
// LEDGER_INCONSISTENT with the report attached.
func (h *LoanHandler) VerifyLedger(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.loanID(c)
	if !ok {
		return
	}

	report, err := h.loans.VerifyLedger(c.Request.Context(), caller, id)
	if err != nil {
		if errors.Is(err, ledger.ErrLedgerCorrupted{}) && report != nil {
			respondWithDomainError(c, h.logger, err, report)
			return
		}
		RespondWithDomainError(c, h.logger, err)
		return
	}
	RespondOK(c, report)
}
