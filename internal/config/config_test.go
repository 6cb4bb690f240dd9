package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfig_Defaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30, cfg.Capacity)
	assert.Equal(t, 5, cfg.RefillTokens)
	assert.Equal(t, time.Second, cfg.RefillInterval)
	assert.Equal(t, "user", cfg.KeyStrategy)
	assert.Equal(t, "rl:scan", cfg.Prefix)
}

func TestLoadRateLimitConfig_Shorthands(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 10, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestLoad_MemoryBackend(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://broker:5672/")
	t.Setenv("QR_SIZE", "128")

	cfg := Load()
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, SequenceStore, cfg.SequenceBackend)
	assert.Equal(t, 4, cfg.TicketNumberWidth)
	assert.Equal(t, 128, cfg.QRSize)
	assert.Equal(t, "amqp://broker:5672/", cfg.AMQPURL)
	assert.True(t, cfg.EventsEnabled)
	assert.Empty(t, cfg.DBHost)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "off")
	t.Setenv("X_INT", "abc")
	t.Setenv("X_DUR", "90s")
	assert.False(t, envBool("X_BOOL", true))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, 90*time.Second, envDur("X_DUR", 0))
	assert.Equal(t, "d", envStr("X_UNSET_FOR_TEST", "d"))
}
