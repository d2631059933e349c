package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.False(t, cfg.Stock.BlockOnInsufficientStock)
	assert.Equal(t, 3, cfg.Stock.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Stock.LockTTL)
	assert.Equal(t, "pos.sales", cfg.Kafka.SalesTopic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.InDelta(t, 0.123, cfg.Accounting.URSSAFRate, 1e-9)
	assert.Len(t, cfg.Warnings(), 2)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STOCK_BLOCK_ON_INSUFFICIENT", "yes")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.stockguard.fr")
	t.Setenv("DATABASE_DSN", "postgres://prod")
	t.Setenv("URSSAF_RATE", "0.128")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Stock.BlockOnInsufficientStock)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.InDelta(t, 0.128, cfg.Accounting.URSSAFRate, 1e-9)
	assert.Empty(t, cfg.Warnings())
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsZeroRetries(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STOCK_MAX_RETRIES", "0")

	_, err := Load()
	assert.Error(t, err)
}
