package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Logging      LoggingConfig
	Metrics      MetricsConfig
	Auth         AuthConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Housekeeping HousekeepingConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type AuthConfig struct {
	RequireAPIKeys bool
	KeyHeader      string // default: Authorization Bearer <key>
	AdminSecret    string
	// KeyEnvironment is embedded in issued API keys (mk_<env>_...) so live
	// and test credentials can never cross over.
	KeyEnvironment string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	// CheckoutRatePerMinute bounds checkout-session creation per client key.
	CheckoutRatePerMinute int
	// EventCacheTTL is how long processed webhook event ids stay in the
	// Redis fast-path dedup cache. The orders table unique constraint is
	// the authority; the cache only saves a DB round trip.
	EventCacheTTL time.Duration
}

type HousekeepingConfig struct {
	Enabled bool
	// PendingOrderTTL is how long an unreconciled pending order may sit
	// before the reaper removes it.
	PendingOrderTTL time.Duration
	SweepInterval   time.Duration
	SweepRateLimit  float64
	MaxConcurrent   int
	BatchSize       int
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Auth: AuthConfig{
			RequireAPIKeys: getEnvBool("AUTH_REQUIRE_API_KEYS", true),
			KeyHeader:      getEnv("AUTH_KEY_HEADER", "Authorization"),
			AdminSecret:    getEnv("ADMIN_SECRET", ""),
			KeyEnvironment: getEnv("AUTH_KEY_ENVIRONMENT", "test"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Stripe: StripeConfig{
			SecretKey:             getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:         getEnv("STRIPE_WEBHOOK_SECRET", ""),
			CheckoutSuccessURL:    getEnv("STRIPE_CHECKOUT_SUCCESS_URL", "https://shop.example.com/checkout/success"),
			CheckoutCancelURL:     getEnv("STRIPE_CHECKOUT_CANCEL_URL", "https://shop.example.com/checkout/cancel"),
			CheckoutRatePerMinute: getEnvInt("STRIPE_CHECKOUT_RATE_PER_MINUTE", 60),
			EventCacheTTL:         getEnvDuration("STRIPE_EVENT_CACHE_TTL", 24*time.Hour),
		},
		Housekeeping: HousekeepingConfig{
			Enabled:         getEnvBool("HOUSEKEEPING_ENABLED", true),
			PendingOrderTTL: getEnvDuration("HOUSEKEEPING_PENDING_ORDER_TTL", 24*time.Hour),
			SweepInterval:   getEnvDuration("HOUSEKEEPING_SWEEP_INTERVAL", 1*time.Hour),
			SweepRateLimit:  getEnvFloat("HOUSEKEEPING_SWEEP_RATE_LIMIT", 5.0),
			MaxConcurrent:   getEnvInt("HOUSEKEEPING_MAX_CONCURRENT", 2),
			BatchSize:       getEnvInt("HOUSEKEEPING_BATCH_SIZE", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Housekeeping.Enabled && c.Housekeeping.PendingOrderTTL < time.Minute {
		return fmt.Errorf("pending order TTL must be at least one minute")
	}
	if c.Housekeeping.MaxConcurrent < 1 {
		return fmt.Errorf("housekeeping max concurrent must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
