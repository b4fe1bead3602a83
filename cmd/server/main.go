package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mailhook/internal/config"
	"mailhook/internal/database"
	"mailhook/internal/dispatch"
	"mailhook/internal/handlers"
	"mailhook/internal/scheduler"
	"mailhook/internal/server"
	"mailhook/internal/threading"
	"mailhook/internal/transport"
)

// newTransport selects the outbound email provider from configuration
func newTransport(cfg *config.Config, logger zerolog.Logger) transport.Provider {
	switch cfg.TransportProvider {
	case "ses":
		provider, err := transport.NewSES(context.Background(), transport.SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize SES transport")
		}
		return provider
	case "sendgrid":
		return transport.NewSendGrid(cfg.SendGridAPIKey)
	default:
		logger.Warn().Str("provider", cfg.TransportProvider).Msg("Using stdout transport, mail will not be delivered")
		return transport.NewStdout()
	}
}

// runProcessorLoop drains due scheduled sends on a fixed interval
func runProcessorLoop(ctx context.Context, processor *scheduler.Processor, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := processor.ProcessDue(ctx, time.Now().UTC()); err != nil {
				logger.Error().Err(err).Msg("Due-send processing failed")
			}
		}
	}
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := cfg.SetupLogger()

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	logger.Info().Msg("Database connection established successfully")

	scheduledStore, err := database.NewScheduledSendService(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize scheduled send storage")
	}
	endpointStore, err := database.NewEndpointService(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize endpoint storage")
	}

	provider := newTransport(cfg, logger)

	client := dispatch.NewClient(logger)
	forwarder := dispatch.NewForwarder(provider, cfg.RelayFromAddress, logger)
	dispatcher := dispatch.NewDispatcher(client, forwarder, cfg.DispatchMaxConcurrency, cfg.DispatchRatePerSecond, cfg.DispatchBurst, logger)

	schedulerSvc := scheduler.NewService(scheduledStore, cfg.MinLeadTime, logger)
	processor := scheduler.NewProcessor(scheduledStore, provider, cfg.ProcessBatchSize, cfg.DispatchMaxConcurrency, logger)

	endpoints := handlers.NewCachedEndpointSource(endpointStore)
	threads := threading.NewEngine(cfg.LocalAddresses)

	// Create and initialize server
	srv := server.New(cfg, db, logger, endpoints, client, dispatcher, forwarder, schedulerSvc, processor, threads)
	srv.Initialize()

	if cfg.InternalProcessor {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go runProcessorLoop(ctx, processor, cfg.ProcessInterval, logger)
	}

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
}
