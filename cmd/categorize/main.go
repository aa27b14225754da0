// Command categorize runs the categorization pipeline once, or enqueues it
// as a job when AMQP is configured and -enqueue is set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ngacho/cashstate/internal/ai"
	"github.com/ngacho/cashstate/internal/amqp"
	"github.com/ngacho/cashstate/internal/backend"
	"github.com/ngacho/cashstate/internal/config"
	applog "github.com/ngacho/cashstate/internal/log"
	"github.com/ngacho/cashstate/internal/services"
)

func main() {
	_ = godotenv.Load()

	var (
		userID  = flag.String("user", "", "user id to categorize for (required)")
		ids     = flag.String("ids", "", "comma-separated transaction ids; empty means recent uncategorized")
		enqueue = flag.Bool("enqueue", false, "publish a job instead of running inline")
		force   = flag.Bool("force", false, "include already-categorized transactions")
	)
	flag.Parse()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentCategorize,
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}),
	})
	applog.SetDefault(logger)

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: categorize -user <id> [-ids t1,t2] [-enqueue] [-force]")
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	var txnIDs []string
	if *ids != "" {
		txnIDs = strings.Split(*ids, ",")
	}

	ctx := context.Background()

	if *enqueue {
		if cfg.AMQPURL == "" {
			logger.Error("Cannot enqueue without AMQP_URL")
			os.Exit(1)
		}
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		if err := client.PublishJob(ctx, amqp.NewCategorizeJob(*userID, txnIDs, *force)); err != nil {
			logger.Error("Failed to publish job", applog.FieldError, err)
			os.Exit(1)
		}
		fmt.Println("job enqueued")
		return
	}

	stores, cleanup, err := backend.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer cleanup()

	model, err := ai.NewModel(ctx, cfg.AIProvider, cfg.GeminiModel)
	if err != nil {
		logger.Error("Failed to initialize AI model", applog.FieldError, err, "provider", cfg.AIProvider)
		os.Exit(1)
	}
	var categorizer *ai.Categorizer
	if model != nil {
		categorizer = ai.NewCategorizer(model)
	}

	svc := services.NewCategorizationService(
		stores.Transactions, stores.Categories, stores.Rules,
		categorizer, cfg.CategorizeBatchSize, cfg.AITimeout)

	result, err := svc.Categorize(ctx, *userID, txnIDs, *force)
	if err != nil {
		logger.Error("Categorization finished with errors", applog.FieldError, err)
	}

	fmt.Printf("rule matches: %d\nai matches: %d\nuncategorized: %d\n",
		len(result.RuleMatched), len(result.AIMatched), len(result.Uncategorized))
	if err != nil {
		os.Exit(1)
	}
}
