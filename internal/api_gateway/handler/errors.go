package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loan-lifecycle-engine/internal/api_gateway/middleware"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{shared.ErrMissingCaller, http.StatusUnauthorized, "UNAUTHORIZED"},
	{loan.InvalidApplicationError{}, http.StatusBadRequest, "INVALID_APPLICATION"},
	{loan.InvalidArgumentError{}, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{loan.NotFoundError{}, http.StatusNotFound, "LOAN_NOT_FOUND"},
	{loan.IllegalTransitionError{}, http.StatusConflict, "ILLEGAL_TRANSITION"},
	{loan.OverpaymentError{}, http.StatusUnprocessableEntity, "OVERPAYMENT"},
	{loan.ForbiddenError{}, http.StatusForbidden, "FORBIDDEN"},
	{loan.DuplicateRequestError{}, http.StatusConflict, "DUPLICATE_REQUEST"},
	{ledger.ErrLedgerCorrupted{}, http.StatusInternalServerError, "LEDGER_INCONSISTENT"},
}

// statusFor returns the HTTP status and error code for err. ok is false for
// errors with no mapping, which are answered as opaque internal errors.
func statusFor(err error) (status int, code string, ok bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, true
		}
	}
	return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", false
}

// RespondWithDomainError writes err in the response envelope. Ledger
// corruption and unmapped errors are logged at ERROR.
func RespondWithDomainError(c *gin.Context, logger *slog.Logger, err error) {
	respondWithDomainError(c, logger, err, nil)
}

func respondWithDomainError(c *gin.Context, logger *slog.Logger, err error, data interface{}) {
	status, code, ok := statusFor(err)
	correlationID := middleware.GetCorrelationID(c)

	switch {
	case !ok && errors.Is(err, context.Canceled):
		logger.Warn("Request canceled", "path", c.FullPath(), "correlation_id", correlationID)
		RespondInternalError(c)
		return
	case !ok:
		logger.Error("Request failed", "path", c.FullPath(), "correlation_id", correlationID, "error", err)
		RespondInternalError(c)
		return
	case status >= http.StatusInternalServerError:
		logger.Error("Request failed", "path", c.FullPath(), "code", code, "correlation_id", correlationID, "error", err)
	}

	response := NewErrorResponse(code, err.Error())
	response.Data = data
	respond(c, status, response)
}
