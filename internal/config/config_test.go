package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "MAXMIND_ACCOUNT_ID", "")
	setEnv(t, "MAXMIND_LICENSE_KEY", "")
	setEnv(t, "PORT", "")
	setEnv(t, "RISK_THRESHOLD", "")
	setEnv(t, "KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRiskThreshold, cfg.RiskThreshold)
	assert.Equal(t, DefaultProviderTimeout, cfg.ProviderTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "MAXMIND_ACCOUNT_ID", "123456")
	setEnv(t, "MAXMIND_LICENSE_KEY", "abcdef0123456789")
	setEnv(t, "PORT", "9090")
	setEnv(t, "RISK_THRESHOLD", "72.5")
	setEnv(t, "PROVIDER_TIMEOUT", "2s")
	setEnv(t, "KAFKA_BROKERS", "broker1:9092, broker2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "123456", cfg.MaxMindAccountID)
	assert.Equal(t, 72.5, cfg.RiskThreshold)
	assert.Equal(t, 2*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_CredentialsMustBePaired(t *testing.T) {
	setEnv(t, "MAXMIND_ACCOUNT_ID", "123456")
	setEnv(t, "MAXMIND_LICENSE_KEY", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be set together")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid minimal",
			config:  Config{RiskThreshold: 50, ProviderTimeout: time.Second},
			wantErr: false,
		},
		{
			name:    "threshold out of range",
			config:  Config{RiskThreshold: 150, ProviderTimeout: time.Second},
			wantErr: true,
		},
		{
			name:    "negative threshold",
			config:  Config{RiskThreshold: -1, ProviderTimeout: time.Second},
			wantErr: true,
		},
		{
			name:    "zero provider timeout",
			config:  Config{RiskThreshold: 50},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_EnvHelpers(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.True(t, cfg.IsProduction())
}
