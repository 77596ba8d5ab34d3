package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loan-lifecycle-engine/internal/api_gateway/handler"
	"github.com/loan-lifecycle-engine/internal/api_gateway/middleware"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
)

// Pinger is a dependency reported by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	loanHandler *handler.LoanHandler,
	callerSecret []byte,
	idempotencyStore middleware.IdempotencyStore,
	readiness map[string]Pinger,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	idempotent := middleware.Idempotency(logger, idempotencyStore)
	adminOnly := middleware.RequireRole(shared.RoleAdmin)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.CallerIdentity(callerSecret))
	{
		loans := v1.Group("/loans")
		{
			loans.POST("/apply", idempotent, loanHandler.Apply)
			loans.GET("", adminOnly, loanHandler.ListByStatus)
			loans.GET("/stats", adminOnly, loanHandler.Stats)
			loans.GET("/my", loanHandler.ListMine)

			loans.GET("/:id", loanHandler.GetByID)
			loans.GET("/:id/payments", loanHandler.Payments)
			loans.GET("/:id/schedule", loanHandler.Schedule)
			loans.GET("/:id/events", loanHandler.Events)
			loans.GET("/:id/ledger/verify", adminOnly, loanHandler.VerifyLedger)

			loans.POST("/:id/approve", adminOnly, idempotent, loanHandler.Approve)
			loans.POST("/:id/reject", adminOnly, idempotent, loanHandler.Reject)
			loans.POST("/:id/disburse", adminOnly, idempotent, loanHandler.Disburse)
			loans.POST("/:id/repay", idempotent, loanHandler.Repay)
			loans.POST("/:id/repayments", idempotent, loanHandler.SubmitRepayment)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := make(gin.H, len(readiness))
		status := http.StatusOK
		for name, dep := range readiness {
			if err := dep.Ping(ctx); err != nil {
				logger.Warn("Readiness check failed", "dependency", name, "error", err)
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	})
}
