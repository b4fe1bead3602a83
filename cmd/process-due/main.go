package main

import (
	"context"
	"time"

	"mailhook/internal/config"
	"mailhook/internal/database"
	"mailhook/internal/scheduler"
	"mailhook/internal/transport"
)

// One-shot binary for cron deployments: drain due scheduled sends and exit.
func main() {
	cfg := config.Load()
	logger := cfg.SetupLogger()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close() //nolint:errcheck

	store, err := database.NewScheduledSendService(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize scheduled send storage")
	}

	var provider transport.Provider
	switch cfg.TransportProvider {
	case "ses":
		provider, err = transport.NewSES(context.Background(), transport.SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize SES transport")
		}
	case "sendgrid":
		provider = transport.NewSendGrid(cfg.SendGridAPIKey)
	default:
		provider = transport.NewStdout()
	}

	processor := scheduler.NewProcessor(store, provider, cfg.ProcessBatchSize, cfg.DispatchMaxConcurrency, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := processor.ProcessDue(ctx, time.Now().UTC())
	if err != nil {
		logger.Fatal().Err(err).Msg("Due-send processing failed")
	}

	log := logger.Info()
	if result.Failed > 0 {
		log = logger.Warn()
	}
	log.Int("processed", result.Processed).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("Done")
}
