package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// HTTP API
	APIPort int

	// Alpaca brokerage endpoints
	BrokerBaseURL string
	DataBaseURL   string
	StreamURL     string

	// Environment-variable credential fallback, used when no active
	// TradingConfig row exists in the database
	AlpacaAPIKey    string
	AlpacaAPISecret string

	// Database configuration
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// Trading configuration
	Trading TradingConfig
}

// TradingConfig holds pipeline parameters and thresholds
type TradingConfig struct {
	// Default ticker applied at the webhook boundary when the payload omits one
	DefaultTicker string

	// Outbound brokerage call timeout in seconds
	RequestTimeoutSeconds int

	// Bounded retries for transient transport failures before order
	// submission (credential check, market data). Never applied at or
	// after submission.
	RetryAttempts      int
	RetryBackoffMillis int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		APIPort: getEnvInt("API_PORT", 8080),

		BrokerBaseURL: getEnvOrDefault("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		DataBaseURL:   getEnvOrDefault("ALPACA_DATA_URL", "https://data.alpaca.markets"),
		StreamURL:     getEnvOrDefault("ALPACA_STREAM_URL", "wss://paper-api.alpaca.markets/stream"),

		AlpacaAPIKey:    os.Getenv("ALPACA_API_KEY"),
		AlpacaAPISecret: os.Getenv("ALPACA_SECRET_KEY"),

		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "options_trader"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "trader"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "trader123"),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		// Trading configuration
		Trading: TradingConfig{
			DefaultTicker:         getEnvOrDefault("TRADING_DEFAULT_TICKER", "SPY"),
			RequestTimeoutSeconds: getEnvInt("TRADING_REQUEST_TIMEOUT", 10),
			RetryAttempts:         getEnvInt("TRADING_RETRY_ATTEMPTS", 2),
			RetryBackoffMillis:    getEnvInt("TRADING_RETRY_BACKOFF_MS", 500),
		},
	}
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
