package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	DatabasePath string
	LogLevel     string

	// Input data paths
	InputFilePath      string
	ProductRefDataPath string

	// Pipeline settings
	ThresholdFraction     float64
	EnrichmentConcurrency int
	RunTimeout            time.Duration
	FailFast              bool

	// Exchange rate API settings
	RateAPIBaseURL      string
	RateAPIKey          string
	RateLimitCooldown   time.Duration
	RateRequestInterval time.Duration

	// Processing date override, for testing. Empty means "today".
	ProcessingDateOverride string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from a subdir)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	thresholdFraction := getEnvAsFloat("QUARANTINE_THRESHOLD_FRACTION", 0.25)
	if thresholdFraction < 0 || thresholdFraction >= 1 {
		log.Printf("WARNING: QUARANTINE_THRESHOLD_FRACTION %.2f out of [0,1); using default 0.25", thresholdFraction)
		thresholdFraction = 0.25
	}

	Cfg = &AppConfig{
		// Core
		DatabasePath: getEnv("DATABASE_PATH", "./salespipe.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// Input
		InputFilePath:      getEnv("INPUT_FILE_PATH", "data/sales.csv"),
		ProductRefDataPath: getEnv("PRODUCT_REF_DATA_PATH", "data/products.csv"),

		// Pipeline
		ThresholdFraction:     thresholdFraction,
		EnrichmentConcurrency: getEnvAsInt("ENRICHMENT_CONCURRENCY", 4),
		RunTimeout:            getEnvAsDuration("RUN_TIMEOUT", 45*time.Minute),
		FailFast:              getEnvAsBool("FAIL_FAST", true),

		// Exchange rate API
		RateAPIBaseURL:      getEnv("RATE_API_BASE_URL", "http://localhost:8091"),
		RateAPIKey:          getEnv("RATE_API_KEY", ""),
		RateLimitCooldown:   getEnvAsDuration("RATE_LIMIT_COOLDOWN", 20*time.Minute),
		RateRequestInterval: getEnvAsDuration("RATE_REQUEST_INTERVAL", 200*time.Millisecond),

		// Testing override
		ProcessingDateOverride: getEnv("PROCESSING_DATE_OVERRIDE", ""),
	}

	log.Printf("Configuration loaded: LogLevel=%s, DBPath=%s, Input=%s, Threshold=%.2f",
		Cfg.LogLevel, Cfg.DatabasePath, Cfg.InputFilePath, Cfg.ThresholdFraction)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a fallback.
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %.2f", key, valueStr, fallback)
	return fallback
}

// getEnvAsBool retrieves an environment variable as a bool or returns a fallback.
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
