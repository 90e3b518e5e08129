package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/username/salespipe/src/config"
	"github.com/username/salespipe/src/database"
	"github.com/username/salespipe/src/logger"
	"github.com/username/salespipe/src/parsers/salescsv"
	"github.com/username/salespipe/src/pipeline"
	"github.com/username/salespipe/src/processors"
	"github.com/username/salespipe/src/services"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("salespipe batch starting...")

	processingDate, err := resolveProcessingDate(config.Cfg.ProcessingDateOverride)
	if err != nil {
		logger.L.Error("Invalid PROCESSING_DATE_OVERRIDE", "value", config.Cfg.ProcessingDateOverride, "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	referenceService := services.NewReferenceService(config.Cfg.ProductRefDataPath)
	referenceService.Invalidate() // Reference data is reloaded every run
	productRefs, err := referenceService.Load()
	if err != nil {
		logger.L.Error("Failed to load product reference data", "error", err)
		os.Exit(1)
	}

	inputFile, err := os.Open(config.Cfg.InputFilePath)
	if err != nil {
		logger.L.Error("Failed to open input file", "path", config.Cfg.InputFilePath, "error", err)
		os.Exit(1)
	}
	defer inputFile.Close()

	raws, err := salescsv.NewParser().Parse(inputFile)
	if err != nil {
		logger.L.Error("Failed to parse input file", "path", config.Cfg.InputFilePath, "error", err)
		os.Exit(1)
	}
	logger.L.Info("Input file parsed", "path", config.Cfg.InputFilePath, "records", len(raws))

	rateClient := processors.NewHTTPRateClient(
		config.Cfg.RateAPIBaseURL,
		config.Cfg.RateAPIKey,
		config.Cfg.RateRequestInterval,
		config.Cfg.RateLimitCooldown,
	)
	rateProvider := processors.NewCachedRateProvider(rateClient)

	p := pipeline.New(pipeline.Config{
		ThresholdFraction: config.Cfg.ThresholdFraction,
		Concurrency:       config.Cfg.EnrichmentConcurrency,
		FailFast:          config.Cfg.FailFast,
	}, rateProvider)

	// A stuck rate API must not hang the batch forever.
	ctx, cancel := context.WithTimeout(context.Background(), config.Cfg.RunTimeout)
	defer cancel()

	result, err := p.Run(ctx, raws, processingDate)
	if err != nil {
		if errors.Is(err, pipeline.ErrThresholdExceeded) {
			// All-or-nothing: nothing reaches the sink on abort. Every
			// record's fate is "not committed due to abort".
			logger.L.Error("Run aborted, no output committed",
				"runID", result.RunID,
				"processed", result.Counts.Processed,
				"quarantined", result.Counts.Quarantined,
				"fraction", result.Counts.Fraction,
				"threshold", result.Counts.Threshold)
			os.Exit(2)
		}
		logger.L.Error("Pipeline run failed", "error", err)
		os.Exit(1)
	}

	sink := database.NewRunSink(database.DB)
	if err := sink.CommitRun(result.Orders, result.Lines, result.Quarantine, productRefs); err != nil {
		logger.L.Error("Failed to commit run output", "runID", result.RunID, "error", err)
		os.Exit(1)
	}

	logger.L.Info("salespipe batch finished",
		"runID", result.RunID,
		"orders", len(result.Orders),
		"lines", len(result.Lines),
		"quarantined", len(result.Quarantine))
}

// resolveProcessingDate fixes the run's exchange-rate date: the override when
// set (testing), otherwise today in UTC.
func resolveProcessingDate(override string) (time.Time, error) {
	if override == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", override)
}
