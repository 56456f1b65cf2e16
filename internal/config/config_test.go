package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 30*time.Second, cfg.Cache.FetchTimeout)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, 3, cfg.Cache.StoreMaxAttempts)
	assert.Equal(t, "Dakar", cfg.Delivery.FreeCity)
	assert.InDelta(t, 655.957, cfg.Payment.ExchangeRate, 1e-9)
	assert.Empty(t, cfg.Payment.ConfirmSecret)
	assert.False(t, cfg.LLM.Primary.Enabled())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LLM_PRIMARY_BASE_URL", "https://llm.example")
	t.Setenv("LLM_PRIMARY_MODEL", "chat-small")
	t.Setenv("LLM_STRUCTURED_OUTPUT", "yes")
	t.Setenv("DELIVERY_FEE", "1500")
	t.Setenv("PAYMENT_CONFIRM_SECRET", "whsec-123")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.LLM.Primary.Enabled())
	assert.True(t, cfg.LLM.Structured)
	assert.Equal(t, int64(1500), cfg.Delivery.Fee)
	assert.Equal(t, "whsec-123", cfg.Payment.ConfirmSecret)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"PORT":                   "",
		"SESSION_TTL":            "0s",
		"PAYMENT_EXCHANGE_RATE":  "0",
		"DEFAULT_CITY":           "",
		"LLM_TEMPERATURE":        "3",
		"LLM_SECONDARY_BASE_URL": "https://backup.example",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if key == "LLM_SECONDARY_BASE_URL" {
				t.Setenv("LLM_SECONDARY_MODEL", "backup")
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
