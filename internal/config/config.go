// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// MaxMind minFraud provider. Account ID and license key seed the global
	// config scope on startup; per-channel overrides live in system config.
	MaxMindAccountID  string
	MaxMindLicenseKey string
	MaxMindEndpoint   string // override for tests/proxies
	ProviderTimeout   time.Duration

	// Risk routing
	RiskThreshold float64 // global default; scores strictly above go to fraud review

	// Order-placed intake via Kafka (optional, disabled when brokers empty)
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Tracing
	OTLPEndpoint string
}

const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultRiskThreshold   = 50.0
	DefaultProviderTimeout = 5 * time.Second
	DefaultKafkaTopic      = "order.placed"
	DefaultKafkaGroupID    = "fraudshield"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:         getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:       os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		MaxMindAccountID:  os.Getenv("MAXMIND_ACCOUNT_ID"),
		MaxMindLicenseKey: os.Getenv("MAXMIND_LICENSE_KEY"),
		MaxMindEndpoint:   os.Getenv("MAXMIND_ENDPOINT"),
		ProviderTimeout:   getEnvDuration("PROVIDER_TIMEOUT", DefaultProviderTimeout),
		RiskThreshold:     getEnvFloat("RISK_THRESHOLD", DefaultRiskThreshold),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", DefaultKafkaTopic),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", DefaultKafkaGroupID),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.RiskThreshold < 0 || c.RiskThreshold > 100 {
		return fmt.Errorf("RISK_THRESHOLD must be between 0 and 100, got %v", c.RiskThreshold)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %v", c.ProviderTimeout)
	}
	// Credentials are optional here: channel-scoped credentials can be set
	// through system config at runtime instead.
	if (c.MaxMindAccountID == "") != (c.MaxMindLicenseKey == "") {
		return fmt.Errorf("MAXMIND_ACCOUNT_ID and MAXMIND_LICENSE_KEY must be set together")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
