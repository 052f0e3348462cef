package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"wager-engine/internal/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Engine   EngineConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret string
}

// BetLimits bounds the stake per bet for one currency.
type BetLimits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// EngineConfig holds wagering engine settings
type EngineConfig struct {
	PlatformFeeRate decimal.Decimal                   // fraction of gross payout, e.g. 0.05
	CancelWindow    time.Duration                     // cancellation disallowed this close to the deadline
	LockWait        time.Duration                     // bounded wait for the per-pool lock
	RetryInterval   time.Duration                     // settlement retry job interval
	Limits          map[models.Currency]BetLimits
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "wager_engine"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Engine: EngineConfig{
			PlatformFeeRate: getEnvDecimal("PLATFORM_FEE_RATE", "0.05"),
			CancelWindow:    getEnvDuration("CANCEL_WINDOW_MINUTES", 60) * time.Minute,
			LockWait:        getEnvDuration("LOCK_WAIT_MS", 3000) * time.Millisecond,
			RetryInterval:   getEnvDuration("SETTLEMENT_RETRY_SECONDS", 30) * time.Second,
			Limits: map[models.Currency]BetLimits{
				models.CurrencyXP: {
					Min: getEnvDecimal("MIN_BET_XP", "1"),
					Max: getEnvDecimal("MAX_BET_XP", "100000"),
				},
				models.CurrencyXC: {
					Min: getEnvDecimal("MIN_BET_XC", "0.01"),
					Max: getEnvDecimal("MAX_BET_XC", "10000"),
				},
			},
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	fee := config.Engine.PlatformFeeRate
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("PLATFORM_FEE_RATE must be in [0, 1), got %s", fee)
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvDecimal parses a decimal environment variable, falling back to the
// default when unset or unparseable.
func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	value := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		d, _ = decimal.NewFromString(defaultValue)
	}
	return d
}

// getEnvDuration parses an integer environment variable as a duration count.
func getEnvDuration(key string, defaultValue int64) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(defaultValue)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Duration(defaultValue)
	}
	return time.Duration(n)
}
