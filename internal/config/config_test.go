package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG_FILE", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8000/api", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Polling.AgentStatusInterval)
	assert.Equal(t, 10, cfg.Dashboard.OrdersLimit)
	assert.Equal(t, 3, cfg.Dashboard.ActivityLimit)
	assert.Equal(t, 87.0, cfg.Dashboard.CourseCompletion)
	assert.Equal(t, 10*time.Second, cfg.Dashboard.MinRefreshDisplay)
	assert.Equal(t, "Pilates class scheduled for tomorrow", cfg.Dashboard.InfoActivity.Message)
	assert.False(t, cfg.ConversationLog.Enabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG_FILE", "")
	t.Setenv("API_BASE_URL", "http://backend:9000/api")
	t.Setenv("AGENT_STATUS_INTERVAL", "750ms")
	t.Setenv("CONVERSATION_LOG_ENABLED", "yes")
	t.Setenv("RATE_LIMIT_PER_MIN", "notanumber")
	t.Setenv("FRONTEND_URL", "https://console.example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://backend:9000/api", cfg.Backend.BaseURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Polling.AgentStatusInterval)
	assert.True(t, cfg.ConversationLog.Enabled)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMin, "unparsable values fall back")
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG_FILE", "")
	path := filepath.Join(t.TempDir(), "console.yaml")
	body := `
backend:
  base_url: http://from-file:8000/api
polling:
  agent_status_interval: 5s
dashboard:
  activity_limit: 5
  min_refresh_display: 2s
  info_activity:
    type: class
    message: Yoga retreat this weekend
    time: 1 h ago
agents:
  support_greeting: Hi from support
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-file:8000/api", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Polling.AgentStatusInterval)
	assert.Equal(t, 5, cfg.Dashboard.ActivityLimit)
	assert.Equal(t, 10, cfg.Dashboard.OrdersLimit)
	assert.Equal(t, 2*time.Second, cfg.Dashboard.MinRefreshDisplay)
	assert.Equal(t, "Yoga retreat this weekend", cfg.Dashboard.InfoActivity.Message)
	assert.Equal(t, "Hi from support", cfg.Agents.SupportGreeting)
	assert.Equal(t, Default().Agents.AnalyticsGreeting, cfg.Agents.AnalyticsGreeting)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  base_url: http://file:1/api\n"), 0o600))
	t.Setenv("CONSOLE_CONFIG_FILE", path)
	t.Setenv("API_BASE_URL", "http://env:2/api")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://env:2/api", cfg.Backend.BaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG_FILE", "")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"relative base url", func(c *Config) { c.Backend.BaseURL = "/api" }},
		{"zero poll interval", func(c *Config) { c.Polling.AgentStatusInterval = 0 }},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"zero orders limit", func(c *Config) { c.Dashboard.OrdersLimit = 0 }},
		{"negative min display", func(c *Config) { c.Dashboard.MinRefreshDisplay = -time.Second }},
		{"log enabled without dir", func(c *Config) {
			c.ConversationLog.Enabled = true
			c.ConversationLog.Dir = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
