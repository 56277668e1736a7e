// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	SessionTTL      time.Duration
	AccessKey       string
	Backend         BackendConfig
	Polling         PollingConfig
	Dashboard       DashboardConfig
	Agents          AgentsConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
	Logger          LoggerConfig
	Tracer          TracerConfig
}

// BackendConfig describes the business REST backend.
type BackendConfig struct {
	BaseURL            string
	RequestTimeout     time.Duration
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// PollingConfig controls background probes.
type PollingConfig struct {
	AgentStatusInterval time.Duration `yaml:"agent_status_interval"`
}

// DashboardConfig holds the static inputs of the dashboard view model.
type DashboardConfig struct {
	OrdersLimit       int           `yaml:"orders_limit"`
	ActivityLimit     int           `yaml:"activity_limit"`
	CourseCompletion  float64       `yaml:"course_completion"`
	MinRefreshDisplay time.Duration `yaml:"min_refresh_display"`
	InfoActivity      InfoActivity  `yaml:"info_activity"`
}

// InfoActivity is the static entry appended to the activity feed.
type InfoActivity struct {
	Type    string `yaml:"type"`
	Message string `yaml:"message"`
	Time    string `yaml:"time"`
}

// AgentsConfig holds the greeting each agent session opens with. Empty
// values select the built-in greeting.
type AgentsConfig struct {
	SupportGreeting   string `yaml:"support_greeting"`
	AnalyticsGreeting string `yaml:"analytics_greeting"`
}

// RateLimitConfig throttles per-operator requests.
type RateLimitConfig struct {
	RequestsPerMin int
	Burst          int
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// LoggerConfig selects the slog handler.
type LoggerConfig struct {
	Level  string
	Format string
	Output string
}

// TracerConfig selects the OpenTelemetry exporter.
type TracerConfig struct {
	Enabled  bool
	Exporter string
}

// fileConfig is the optional YAML overlay.
type fileConfig struct {
	Backend struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"backend"`
	Polling   *PollingConfig   `yaml:"polling"`
	Dashboard *DashboardConfig `yaml:"dashboard"`
	Agents    *AgentsConfig    `yaml:"agents"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:       "8080",
		DBPath:     "./data/console.db",
		SessionTTL: 8 * time.Hour,
		Backend: BackendConfig{
			BaseURL:            "http://localhost:8000/api",
			RequestTimeout:     30 * time.Second,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Polling: PollingConfig{
			AgentStatusInterval: 3 * time.Second,
		},
		Dashboard: DashboardConfig{
			OrdersLimit:       10,
			ActivityLimit:     3,
			CourseCompletion:  87,
			MinRefreshDisplay: 10 * time.Second,
			InfoActivity: InfoActivity{
				Type:    "class",
				Message: "Pilates class scheduled for tomorrow",
				Time:    "15 min ago",
			},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin: 120,
			Burst:          20,
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   false,
			Dir:       "./data/logs/conversations",
			QueueSize: 1000,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and then environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getEnv("CONSOLE_CONFIG_FILE", "")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.AccessKey = getEnv("CONSOLE_ACCESS_KEY", cfg.AccessKey)

	cfg.Backend.BaseURL = getEnv("API_BASE_URL", cfg.Backend.BaseURL)
	cfg.Backend.RequestTimeout = getEnvDuration("API_REQUEST_TIMEOUT", cfg.Backend.RequestTimeout)
	cfg.Backend.BreakerMaxFailures = uint32(getEnvInt("API_BREAKER_MAX_FAILURES", int(cfg.Backend.BreakerMaxFailures)))
	cfg.Backend.BreakerTimeout = getEnvDuration("API_BREAKER_TIMEOUT", cfg.Backend.BreakerTimeout)

	cfg.Polling.AgentStatusInterval = getEnvDuration("AGENT_STATUS_INTERVAL", cfg.Polling.AgentStatusInterval)
	cfg.Dashboard.MinRefreshDisplay = getEnvDuration("DASHBOARD_MIN_REFRESH_DISPLAY", cfg.Dashboard.MinRefreshDisplay)

	cfg.RateLimit.RequestsPerMin = getEnvInt("RATE_LIMIT_PER_MIN", cfg.RateLimit.RequestsPerMin)
	cfg.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	cfg.ConversationLog.Enabled = getEnvBool("CONVERSATION_LOG_ENABLED", cfg.ConversationLog.Enabled)
	cfg.ConversationLog.Dir = getEnv("CONVERSATION_LOG_DIR", cfg.ConversationLog.Dir)
	if qs := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", cfg.ConversationLog.QueueSize); qs > 0 {
		cfg.ConversationLog.QueueSize = qs
	}

	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Format = getEnv("LOG_FORMAT", cfg.Logger.Format)
	cfg.Logger.Output = getEnv("LOG_OUTPUT", cfg.Logger.Output)

	cfg.Tracer.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracer.Enabled)
	cfg.Tracer.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracer.Exporter)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Backend.BaseURL != "" {
		c.Backend.BaseURL = fc.Backend.BaseURL
	}
	if fc.Polling != nil && fc.Polling.AgentStatusInterval > 0 {
		c.Polling.AgentStatusInterval = fc.Polling.AgentStatusInterval
	}
	if d := fc.Dashboard; d != nil {
		if d.OrdersLimit > 0 {
			c.Dashboard.OrdersLimit = d.OrdersLimit
		}
		if d.ActivityLimit > 0 {
			c.Dashboard.ActivityLimit = d.ActivityLimit
		}
		if d.CourseCompletion > 0 {
			c.Dashboard.CourseCompletion = d.CourseCompletion
		}
		if d.MinRefreshDisplay > 0 {
			c.Dashboard.MinRefreshDisplay = d.MinRefreshDisplay
		}
		if d.InfoActivity.Message != "" {
			c.Dashboard.InfoActivity = d.InfoActivity
		}
	}
	if a := fc.Agents; a != nil {
		if a.SupportGreeting != "" {
			c.Agents.SupportGreeting = a.SupportGreeting
		}
		if a.AnalyticsGreeting != "" {
			c.Agents.AnalyticsGreeting = a.AnalyticsGreeting
		}
	}
	return nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Polling.AgentStatusInterval <= 0 {
		return fmt.Errorf("AGENT_STATUS_INTERVAL must be > 0")
	}
	if c.Dashboard.ActivityLimit < 0 || c.Dashboard.OrdersLimit <= 0 {
		return fmt.Errorf("dashboard limits must be positive")
	}
	if c.Dashboard.MinRefreshDisplay < 0 {
		return fmt.Errorf("DASHBOARD_MIN_REFRESH_DISPLAY cannot be negative")
	}
	if c.RateLimit.RequestsPerMin <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN and RATE_LIMIT_BURST must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
