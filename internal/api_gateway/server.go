package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loan-lifecycle-engine/internal/api_gateway/handler"
	"github.com/loan-lifecycle-engine/internal/api_gateway/middleware"
	"github.com/loan-lifecycle-engine/internal/api_gateway/service"
	"github.com/loan-lifecycle-engine/internal/config"
)

// Services are the application services the HTTP layer dispatches to.
type Services struct {
	Loans       service.LoanService
	Queries     service.QueryService
	Repayments  service.RepaymentService
	Idempotency middleware.IdempotencyStore
	// Readiness lists the dependencies reported on /ready, keyed by name.
	Readiness map[string]Pinger
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(log *slog.Logger, cfg *config.Config, svc Services, loanTypes []string) (*Server, error) {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := handler.RegisterValidators(loanTypes); err != nil {
		return nil, err
	}

	httpRouter := gin.New()
	loanHandler := handler.NewLoanHandler(log, svc.Loans, svc.Queries, svc.Repayments)

	setupRouter(log, httpRouter, loanHandler, []byte(cfg.Auth.CallerTokenSecret), svc.Idempotency, svc.Readiness)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}, nil
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests, bounded by the server's write timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
