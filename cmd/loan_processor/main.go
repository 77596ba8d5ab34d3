package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/loan-lifecycle-engine/internal/config"
	"github.com/loan-lifecycle-engine/internal/data/mongo"
	"github.com/loan-lifecycle-engine/internal/data/postgres"
	"github.com/loan-lifecycle-engine/internal/domain/interest"
	"github.com/loan-lifecycle-engine/internal/loan_processor/components"
	"github.com/loan-lifecycle-engine/internal/loan_processor/consumer"
	"github.com/loan-lifecycle-engine/internal/loan_processor/outbox_poller"
	"github.com/loan-lifecycle-engine/internal/logger"
	"github.com/loan-lifecycle-engine/internal/platform/messaging/consumers"
	"github.com/loan-lifecycle-engine/internal/platform/messaging/producers"
	"github.com/loan-lifecycle-engine/internal/platform/persistence"
	"github.com/loan-lifecycle-engine/internal/registry"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("loan_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Loan Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	loanRepo := postgres.NewLoanRepository(log, postgresDB)
	paymentRepo := postgres.NewPaymentRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	eventRepo := mongo.NewLoanEventRepository(log, mongoDB.Database())
	if err := eventRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure loan event indexes", "error", err)
		os.Exit(1)
	}

	eventProducer, err := producers.NewLoanEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize loan event producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var dlq producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, dlq)

	loanRegistry := registry.NewRegistry(log, postgresDB, loanRepo, paymentRepo, outboxRepo, interest.NewCalculator(cfg.RateSchedule()))

	repaymentService, shutdownPool := components.CreateRepaymentService(
		postgresDB,
		loanRegistry,
		loanRepo,
		paymentRepo,
		outboxRepo,
		log,
		cfg,
	)

	repaymentHandler := consumer.NewRepaymentEventHandler(log, repaymentService, dlq)

	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		outbox_poller.NewEventPublisher(outboxRepo, eventRepo, eventProducer, log),
		log,
	)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.RepaymentTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, repaymentHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// The consumer has stopped handing out work, so the pool can go
	shutdownPool()

	var shutdownErr error
	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		shutdownErr = err
	}

	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
			shutdownErr = err
		}
	}

	if err := eventProducer.Close(); err != nil {
		log.Error("Error closing loan event producer", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serviceErr != nil {
		log.Error("Loan Processor shutdown with errors", "error", serviceErr)
	}
	if shutdownErr != nil {
		log.Error("Loan Processor shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Loan Processor shutdown completed successfully")
}
