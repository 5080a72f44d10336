package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported (non-exhaustive):
// - GROWTH_API_BASE_URL (string; VITE_API_BASE_URL is honored when unset)
// - GROWTH_REQUEST_TIMEOUT (duration, e.g. "30s")
// - GROWTH_REQUESTS_PER_SECOND (float), GROWTH_REQUEST_BURST (int)
// - GROWTH_STATE_DIR (path), GROWTH_STATE_BACKEND ("file"|"memory")
// - GROWTH_RELAY_INTERVAL (duration), GROWTH_NOTIFICATION_LEVEL ("all"|"none")
// - GROWTH_METRICS_ENABLED (bool), GROWTH_METRICS_PORT (int)
// - GROWTH_INFLUX_URL / _TOKEN / _ORG / _BUCKET / _INTERVAL
func ApplyEnvOverrides(cfg *Config) error {
	if err := applyAPIEnv(cfg); err != nil {
		return err
	}
	if err := applyStateEnv(cfg); err != nil {
		return err
	}
	if err := applyRelayEnv(cfg); err != nil {
		return err
	}
	if err := applyTargetEnv(cfg); err != nil {
		return err
	}
	if err := applyEmailEnv(cfg); err != nil {
		return err
	}
	if err := applyMetricsEnv(cfg); err != nil {
		return err
	}
	return applyInfluxEnv(cfg)
}

func applyAPIEnv(cfg *Config) error {
	if v := os.Getenv("VITE_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("GROWTH_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("GROWTH_API_PREFIX"); v != "" {
		cfg.APIPrefix = v
	}
	if err := setDurationEnv("GROWTH_REQUEST_TIMEOUT", func(d time.Duration) { cfg.RequestTimeout = d }); err != nil {
		return err
	}
	if v := os.Getenv("GROWTH_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid GROWTH_REQUESTS_PER_SECOND: %w", err)
		}
		cfg.RequestsPerSecond = f
	}
	return setIntEnv("GROWTH_REQUEST_BURST", func(n int) { cfg.RequestBurst = n })
}

func applyStateEnv(cfg *Config) error {
	if v := os.Getenv("GROWTH_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("GROWTH_STATE_BACKEND"); v != "" {
		cfg.StateBackend = strings.ToLower(v)
	}
	if v := os.Getenv("GROWTH_DASHBOARD_PATH"); v != "" {
		cfg.DashboardPath = v
	}
	if v := os.Getenv("GROWTH_LOGIN_PATH"); v != "" {
		cfg.LoginPath = v
	}
	if v := os.Getenv("GROWTH_COLOR"); v != "" {
		cfg.Color = strings.ToLower(v)
	}
	return nil
}

func applyRelayEnv(cfg *Config) error {
	if v := os.Getenv("GROWTH_NOTIFICATION_LEVEL"); v != "" {
		cfg.NotificationLevel = v
	}
	if err := setDurationEnv("GROWTH_RELAY_INTERVAL", func(d time.Duration) { cfg.RelayInterval = d }); err != nil {
		return err
	}
	if err := setBoolEnv("GROWTH_RELAY_BACKLOG", func(b bool) { cfg.RelayBacklog = b }); err != nil {
		return err
	}
	if err := setIntEnv("GROWTH_FAILURE_ALERT_THRESHOLD", func(n int) { cfg.FailureAlertThreshold = n }); err != nil {
		return err
	}
	return setDurationEnv("GROWTH_FAILURE_ALERT_COOLDOWN", func(d time.Duration) { cfg.FailureAlertCooldown = d })
}

func applyTargetEnv(cfg *Config) error {
	targets := []struct {
		env string
		dst *string
	}{
		{"GROWTH_DISCORD_WEBHOOK", &cfg.DiscordWebhook},
		{"GROWTH_SLACK_WEBHOOK", &cfg.SlackWebhook},
		{"GROWTH_TELEGRAM_TOKEN", &cfg.TelegramToken},
		{"GROWTH_TELEGRAM_CHAT_ID", &cfg.TelegramChatID},
		{"GROWTH_GENERIC_WEBHOOK_URL", &cfg.GenericWebhookURL},
		{"GROWTH_GOTIFY_URL", &cfg.GotifyURL},
		{"GROWTH_GOTIFY_TOKEN", &cfg.GotifyToken},
		{"GROWTH_PUSHOVER_USER", &cfg.PushoverUser},
		{"GROWTH_PUSHOVER_TOKEN", &cfg.PushoverToken},
		{"GROWTH_RESEND_API_KEY", &cfg.ResendAPIKey},
		{"GROWTH_RESEND_FROM", &cfg.ResendFrom},
	}
	for _, t := range targets {
		if v := os.Getenv(t.env); v != "" {
			*t.dst = v
		}
	}
	if v := os.Getenv("GROWTH_RESEND_TO"); v != "" {
		cfg.ResendTo = splitList(v)
	}
	return nil
}

// applyEmailEnv consolidates SMTP-related env parsing
func applyEmailEnv(cfg *Config) error {
	if v := os.Getenv("GROWTH_EMAIL_HOST"); v != "" {
		cfg.EmailHost = v
	}
	if v := os.Getenv("GROWTH_EMAIL_USER"); v != "" {
		cfg.EmailUser = v
	}
	if v := os.Getenv("GROWTH_EMAIL_PASS"); v != "" {
		cfg.EmailPass = v
	}
	if err := setIntEnv("GROWTH_EMAIL_PORT", func(p int) { cfg.EmailPort = p }); err != nil {
		return err
	}
	if v := os.Getenv("GROWTH_EMAIL_TO"); v != "" {
		cfg.EmailTo = splitList(v)
	}
	return nil
}

func applyMetricsEnv(cfg *Config) error {
	if err := setBoolEnv("GROWTH_METRICS_ENABLED", func(b bool) { cfg.MetricsEnabled = b }); err != nil {
		return err
	}
	return setIntEnv("GROWTH_METRICS_PORT", func(p int) { cfg.MetricsPort = p })
}

func applyInfluxEnv(cfg *Config) error {
	if v := os.Getenv("GROWTH_INFLUX_URL"); v != "" {
		cfg.InfluxURL = v
	}
	if v := os.Getenv("GROWTH_INFLUX_TOKEN"); v != "" {
		cfg.InfluxToken = v
	}
	if v := os.Getenv("GROWTH_INFLUX_ORG"); v != "" {
		cfg.InfluxOrg = v
	}
	if v := os.Getenv("GROWTH_INFLUX_BUCKET"); v != "" {
		cfg.InfluxBucket = v
	}
	return setDurationEnv("GROWTH_INFLUX_INTERVAL", func(d time.Duration) { cfg.InfluxInterval = d })
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setBoolEnv(env string, setter func(bool)) error {
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(b)
	}
	return nil
}

func setIntEnv(env string, setter func(int)) error {
	if v := os.Getenv(env); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(n)
	}
	return nil
}

func setDurationEnv(env string, setter func(time.Duration)) error {
	if v := os.Getenv(env); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(d)
	}
	return nil
}
