package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ngacho/cashstate/internal/ai"
	"github.com/ngacho/cashstate/internal/amqp"
	"github.com/ngacho/cashstate/internal/backend"
	"github.com/ngacho/cashstate/internal/config"
	applog "github.com/ngacho/cashstate/internal/log"
	"github.com/ngacho/cashstate/internal/services"
	"github.com/ngacho/cashstate/internal/worker"
)

func main() {
	// Load .env for local development; ignore errors in production.
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting cashstate-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	stores, cleanup, err := backend.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model, err := ai.NewModel(ctx, cfg.AIProvider, cfg.GeminiModel)
	if err != nil {
		logger.Error("Failed to initialize AI model", applog.FieldError, err, "provider", cfg.AIProvider)
		os.Exit(1)
	}
	var categorizer *ai.Categorizer
	if model != nil {
		categorizer = ai.NewCategorizer(model)
		logger.Info("AI categorization enabled", "provider", cfg.AIProvider, "model", cfg.GeminiModel)
	} else {
		logger.Info("AI categorization disabled - rules only")
	}

	snapshotSvc := services.NewSnapshotService(stores.Snapshots, stores.Accounts)
	categorizeSvc := services.NewCategorizationService(
		stores.Transactions, stores.Categories, stores.Rules,
		categorizer, cfg.CategorizeBatchSize, cfg.AITimeout)

	w := worker.New(stores.Accounts, snapshotSvc, categorizeSvc, cfg.SnapshotHour, cfg.SnapshotConcurrency)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	// The daily sweep runs regardless; the AMQP consumer only when configured.
	go func() {
		if err := w.RunDailySweep(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Daily sweep stopped", applog.FieldError, err)
			cancel()
		}
	}()

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		logger.Info("Consuming jobs", "queue", cfg.AMQPQueue)
		if err := amqpClient.ConsumeJobs(ctx, func(job *amqp.Job) error {
			return w.HandleJob(ctx, job)
		}); err != nil && ctx.Err() == nil {
			logger.Error("Job consumption stopped", applog.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - running daily sweep only")
		<-ctx.Done()
	}

	logger.Info("cashstate-worker stopped")
}
