package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/gloomfloor/config"
	"sjsage522/gloomfloor/helpers"
	"sjsage522/gloomfloor/internal"
	"sjsage522/gloomfloor/internal/crawler"
	"sjsage522/gloomfloor/logger"
	"sjsage522/gloomfloor/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 2
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("listing_url", cfg.ListingURL).
		Int("min_items", cfg.MinItems).
		Str("enrich_mode", cfg.EnrichMode).
		Str("failure_policy", cfg.FailurePolicy).
		Msg("Starting application")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := internal.NewDependencies(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		return 1
	}
	defer deps.Cleanup()

	policy, _ := crawler.ParseFailurePolicy(cfg.FailurePolicy)
	scheduler := crawler.NewScheduler(
		deps.Enricher(cfg),
		crawler.WithFailurePolicy(policy),
		crawler.WithInterval(cfg.EnrichInterval),
	)
	scheduler.Start(ctx)
	defer scheduler.Close()

	collector := crawler.NewCollector(deps.Browser, cfg.ListingURL, cfg.ScrollPause, cfg.MaxScrolls)

	w := worker.NewWorker(
		collector,
		scheduler,
		deps.Publisher,
		helpers.NewLogger(cfg.ErrorLogFile),
		worker.Options{
			MinItems:      cfg.MinItems,
			RarityBaseURL: cfg.RarityBaseURL,
			OutputPath:    cfg.OutputPath,
			SummaryLimit:  cfg.SummaryLimit,
		},
	)

	report, err := w.Run(ctx)
	log.Info().
		Str("run_id", report.RunID).
		Int("collected", report.Collected).
		Int("parsed", report.Parsed).
		Int("enriched", report.Enriched).
		Int("failed", report.Failed).
		Int("published", report.Published).
		Str("output", report.Output).
		Msg("Run complete")

	if err != nil {
		log.Error().Err(err).Msg("Run finished with errors")
		return 1
	}
	return 0
}
