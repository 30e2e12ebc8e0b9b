package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_REALTIME_URL",
		"OPENAI_REALTIME_MODEL", "REALTIME_CONNECT_TIMEOUT", "N8N_WEBHOOK_URL", "WEBHOOK_TIMEOUT", "LOG_JSON", "SESSION_RETENTION"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Zero(t, cfg.Server.SessionRetention)
	assert.Equal(t, DefaultBaseURL, cfg.Realtime.BaseURL)
	assert.Equal(t, DefaultStreamURL, cfg.Realtime.StreamURL)
	assert.Equal(t, DefaultModel, cfg.Realtime.Model)
	assert.Equal(t, 15*time.Second, cfg.Realtime.ConnectTimeout)
	assert.False(t, cfg.Realtime.Enabled())
	assert.False(t, cfg.Webhook.Enabled())
	assert.Equal(t, DefaultWebhookTimeout, cfg.Webhook.Timeout)
	assert.False(t, cfg.Log.JSON)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:3000")
	t.Setenv("OPENAI_API_KEY", "  sk-test  ")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/v1/")
	t.Setenv("REALTIME_CONNECT_TIMEOUT", "5")
	t.Setenv("WEBHOOK_TIMEOUT", "250ms")
	t.Setenv("N8N_WEBHOOK_URL", "http://hooks.local/submit")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("SESSION_RETENTION", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:3000", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Server.SessionRetention)
	assert.Equal(t, "sk-test", cfg.Realtime.APIKey)
	assert.Equal(t, "http://localhost:9999/v1", cfg.Realtime.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Realtime.ConnectTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Webhook.Timeout)
	assert.True(t, cfg.Webhook.Enabled())
	assert.True(t, cfg.Log.JSON)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{key: "PORT", value: "80 80"},
		{key: "REALTIME_CONNECT_TIMEOUT", value: "soon"},
		{key: "REALTIME_CONNECT_TIMEOUT", value: "-1s"},
		{key: "LOG_JSON", value: "maybe"},
		{key: "SESSION_RETENTION", value: "many"},
		{key: "SESSION_RETENTION", value: "-3"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := NewLogger(LogConfig{Level: "chatty"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger = NewLogger(LogConfig{Level: "debug", JSON: true})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
