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
	assert.Equal(t, "sandbox", cfg.PayPalMode)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.DefaultRedemptionLimit)
	assert.Equal(t, 24*time.Hour, cfg.PendingPurchaseTTL)
	assert.Equal(t, 8*time.Second, cfg.GatewayTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PAYPAL_MODE", "live")
	t.Setenv("MAX_DOWNLOAD_ATTEMPTS", "3")
	t.Setenv("PENDING_PURCHASE_TTL_HOURS", "6")
	t.Setenv("GATEWAY_TIMEOUT_SECONDS", "15")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.DefaultRedemptionLimit)
	assert.Equal(t, 6*time.Hour, cfg.PendingPurchaseTTL)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout)
	assert.False(t, cfg.RateLimitEnabled)
}

func TestLoadRejectsBadGatewayMode(t *testing.T) {
	t.Setenv("PAYPAL_MODE", "staging")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadSMTPPort(t *testing.T) {
	t.Setenv("SMTP_PORT", "99999")
	_, err := Load()
	assert.Error(t, err)
}
