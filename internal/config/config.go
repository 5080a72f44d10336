package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for growthctl
type Config struct {
	// APIBaseURL is the marketplace backend origin; requests go to APIBaseURL + APIPrefix.
	APIBaseURL string `json:"api_base_url" yaml:"api_base_url"`
	APIPrefix  string `json:"api_prefix" yaml:"api_prefix"`
	// RequestTimeout bounds a single API call. Zero means no timeout.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
	// Client-side rate limit for API calls. Zero disables limiting.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	RequestBurst      int     `json:"request_burst" yaml:"request_burst"`

	// StateDir holds the persisted client state (token, redirect intent, ...).
	StateDir string `json:"state_dir" yaml:"state_dir"`
	// StateBackend is "file" (default) or "memory" (nothing survives the process).
	StateBackend string `json:"state_backend" yaml:"state_backend"`

	// Routes used for post-login redirects and forced re-authentication.
	DashboardPath string `json:"dashboard_path" yaml:"dashboard_path"`
	LoginPath     string `json:"login_path" yaml:"login_path"`

	// Output
	Colors bool   `json:"colors" yaml:"colors"`
	Color  string `json:"color" yaml:"color"` // "auto", "always", "never"

	// Notification relay
	NotificationLevel string        `json:"notification_level" yaml:"notification_level"` // "all", "none"
	RelayInterval     time.Duration `json:"relay_interval" yaml:"relay_interval"`
	RelayBacklog      bool          `json:"relay_backlog" yaml:"relay_backlog"`
	// Alert once the relay has failed this many passes in a row, then stay quiet for the cooldown.
	FailureAlertThreshold int           `json:"failure_alert_threshold" yaml:"failure_alert_threshold"`
	FailureAlertCooldown  time.Duration `json:"failure_alert_cooldown" yaml:"failure_alert_cooldown"`

	// Metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPort    int  `json:"metrics_port" yaml:"metrics_port"`

	// InfluxDB (push)
	InfluxURL      string        `json:"influx_url" yaml:"influx_url"`
	InfluxToken    string        `json:"influx_token" yaml:"influx_token"`
	InfluxOrg      string        `json:"influx_org" yaml:"influx_org"`
	InfluxBucket   string        `json:"influx_bucket" yaml:"influx_bucket"`
	InfluxInterval time.Duration `json:"influx_interval" yaml:"influx_interval"`

	// Relay targets
	DiscordWebhook    string `json:"discord_webhook" yaml:"discord_webhook"`
	SlackWebhook      string `json:"slack_webhook" yaml:"slack_webhook"`
	TelegramToken     string `json:"telegram_token" yaml:"telegram_token"`
	TelegramChatID    string `json:"telegram_chat_id" yaml:"telegram_chat_id"`
	GenericWebhookURL string `json:"generic_webhook_url" yaml:"generic_webhook_url"`
	GotifyURL         string `json:"gotify_url" yaml:"gotify_url"`
	GotifyToken       string `json:"gotify_token" yaml:"gotify_token"`
	PushoverUser      string `json:"pushover_user" yaml:"pushover_user"`
	PushoverToken     string `json:"pushover_token" yaml:"pushover_token"`

	EmailHost string   `json:"email_host" yaml:"email_host"`
	EmailPort int      `json:"email_port" yaml:"email_port"`
	EmailUser string   `json:"email_user" yaml:"email_user"`
	EmailPass string   `json:"email_pass" yaml:"email_pass"`
	EmailTo   []string `json:"email_to" yaml:"email_to"`

	ResendAPIKey string   `json:"resend_api_key" yaml:"resend_api_key"`
	ResendFrom   string   `json:"resend_from" yaml:"resend_from"`
	ResendTo     []string `json:"resend_to" yaml:"resend_to"`
}

// APIURL returns the base URL every API path is joined onto.
func (c *Config) APIURL() string {
	return strings.TrimRight(c.APIBaseURL, "/") + "/" + strings.Trim(c.APIPrefix, "/")
}

// DefaultConfig returns a sane default configuration
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "http://localhost:8000",
		APIPrefix:  "/api",
		// the web client never configured a timeout; keep that unless asked
		RequestTimeout:    0,
		RequestsPerSecond: 0,
		RequestBurst:      1,

		StateBackend: "file",

		DashboardPath: "/dashboard",
		LoginPath:     "/login",

		Colors: true,
		Color:  "auto",

		NotificationLevel:     "all",
		RelayInterval:         1 * time.Minute,
		FailureAlertThreshold: 3,
		FailureAlertCooldown:  30 * time.Minute,

		MetricsEnabled: false,
		MetricsPort:    9090,

		InfluxInterval: 1 * time.Minute,
		EmailPort:      587,
	}
}

// Validate returns a list of non-fatal configuration warnings, such as
// incomplete relay credential combinations.
func (c *Config) Validate() []string {
	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.GotifyURL != "" && c.GotifyToken == "", "gotify URL provided but token is missing"},
		{c.GotifyToken != "" && c.GotifyURL == "", "gotify token provided but URL is missing"},
		{c.PushoverUser != "" && c.PushoverToken == "", "pushover user provided but token is missing"},
		{c.PushoverToken != "" && c.PushoverUser == "", "pushover token provided but user is missing"},
		{c.TelegramToken != "" && c.TelegramChatID == "", "telegram token provided but chat id is missing"},
		{c.EmailHost != "" && len(c.EmailTo) == 0, "email host provided but no recipients configured (EmailTo)"},
		{c.EmailHost == "" && len(c.EmailTo) > 0, "email recipients configured but email host is empty"},
		{c.ResendAPIKey != "" && (c.ResendFrom == "" || len(c.ResendTo) == 0), "resend api key provided but sender or recipients are missing"},
		{c.RelayInterval <= 0, "relay_interval must be positive; relay will fall back to 1m"},
		{c.RequestsPerSecond < 0, "requests_per_second is negative; rate limiting disabled"},
		{c.StateBackend != "file" && c.StateBackend != "memory", fmt.Sprintf("unknown state_backend %q; using file", c.StateBackend)},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	switch strings.ToLower(c.NotificationLevel) {
	case "all", "none":
	default:
		warnings = append(warnings, fmt.Sprintf("invalid notification_level %q (expected all or none)", c.NotificationLevel))
	}
	if w := validateBaseURL(c.APIBaseURL); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

// validateBaseURL returns a warning string when the base URL is not an absolute http(s) URL.
func validateBaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Sprintf("invalid api_base_url %q (expected http(s)://host[:port])", raw)
	}
	if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		return fmt.Sprintf("api_base_url %q is not https; bearer tokens will travel in clear text", raw)
	}
	return ""
}

// LoadConfigFromFile loads config from a YAML/JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
