package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	DatabaseURL string
	Version     string
	LogLevel    string

	// Outbound email transport: "ses", "sendgrid" or "stdout"
	TransportProvider string
	SendGridAPIKey    string
	AWSRegion         string
	AWSAccessKeyID    string
	AWSSecretKey      string

	// Address forwarded and scheduled mail is sent from
	RelayFromAddress string
	// Addresses treated as our own when classifying thread messages
	LocalAddresses []string

	// Scheduled send tuning
	MinLeadTime       time.Duration // reject sends scheduled closer than this
	ProcessInterval   time.Duration // how often the in-process ticker drains due sends
	ProcessBatchSize  int
	InternalProcessor bool // run the due-send ticker inside the server process

	// Webhook delivery tuning
	DispatchMaxConcurrency int
	DispatchRatePerSecond  int // per-endpoint delivery chains per second
	DispatchBurst          int
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Version:     getEnv("VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		TransportProvider: getEnv("TRANSPORT_PROVIDER", "stdout"),
		SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:    os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),

		RelayFromAddress: getEnv("RELAY_FROM_ADDRESS", "relay@mailhook.local"),
		LocalAddresses:   getEnvList("LOCAL_ADDRESSES"),

		MinLeadTime:       time.Duration(getEnvInt("MIN_LEAD_TIME_SECONDS", 120)) * time.Second,
		ProcessInterval:   time.Duration(getEnvInt("PROCESS_INTERVAL_SECONDS", 60)) * time.Second,
		ProcessBatchSize:  getEnvInt("PROCESS_BATCH_SIZE", 100),
		InternalProcessor: getEnvBool("INTERNAL_PROCESSOR", true),

		DispatchMaxConcurrency: getEnvInt("DISPATCH_MAX_CONCURRENCY", 8),
		DispatchRatePerSecond:  getEnvInt("DISPATCH_RATE_PER_SECOND", 1),
		DispatchBurst:          getEnvInt("DISPATCH_BURST", 5),
	}

	return config
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean with a default fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable as a string slice
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	// Configure zerolog to output JSON without newlines
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Create logger with JSON output to stdout
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "mailhook").
		Str("version", c.Version).
		Logger()

	// Set log level based on configuration
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
