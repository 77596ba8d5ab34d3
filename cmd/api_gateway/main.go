package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/loan-lifecycle-engine/internal/api_gateway"
	"github.com/loan-lifecycle-engine/internal/api_gateway/service"
	"github.com/loan-lifecycle-engine/internal/config"
	"github.com/loan-lifecycle-engine/internal/data/mongo"
	"github.com/loan-lifecycle-engine/internal/data/postgres"
	redisstore "github.com/loan-lifecycle-engine/internal/data/redis"
	"github.com/loan-lifecycle-engine/internal/domain/interest"
	"github.com/loan-lifecycle-engine/internal/logger"
	"github.com/loan-lifecycle-engine/internal/platform/messaging/producers"
	"github.com/loan-lifecycle-engine/internal/platform/persistence"
	"github.com/loan-lifecycle-engine/internal/registry"
	"github.com/loan-lifecycle-engine/internal/views"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := persistence.OpenRedis(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Repayments submitted through the async route are queued for the loan processor
	repaymentProducer, err := producers.NewRepaymentRequestProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize repayment request producer", "error", err)
		os.Exit(1)
	}

	loanRepo := postgres.NewLoanRepository(log, postgresDB)
	paymentRepo := postgres.NewPaymentRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	eventRepo := mongo.NewLoanEventRepository(log, mongoDB.Database())

	calculator := interest.NewCalculator(cfg.RateSchedule())
	loanRegistry := registry.NewRegistry(log, postgresDB, loanRepo, paymentRepo, outboxRepo, calculator)
	loanViews := views.NewViews(log, loanRegistry, eventRepo)
	repaymentService := service.NewRepaymentService(log, loanRegistry, repaymentProducer)

	server, err := api_gateway.NewServer(log, cfg, api_gateway.Services{
		Loans:       loanRegistry,
		Queries:     loanViews,
		Repayments:  repaymentService,
		Idempotency: redisstore.NewIdempotencyStore(log, redisClient, cfg.Redis.IdempotencyTTL),
		Readiness: map[string]api_gateway.Pinger{
			"postgres": postgresDB,
			"mongodb":  mongoDB,
			"redis": api_gateway.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		},
	}, calculator.LoanTypes())
	if err != nil {
		log.Error("Failed to initialize HTTP server", "error", err)
		os.Exit(1)
	}
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain HTTP first so in-flight requests can still reach the stores
	var shutdownErr error
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	if err := repaymentProducer.Close(); err != nil {
		log.Error("Error closing repayment request producer", "error", err)
		shutdownErr = err
	}

	if err := redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
