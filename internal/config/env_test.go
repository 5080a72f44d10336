package config

import (
	"testing"
	"time"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GROWTH_API_BASE_URL", "https://api.growth.example")
	t.Setenv("GROWTH_REQUEST_TIMEOUT", "15s")
	t.Setenv("GROWTH_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("GROWTH_REQUEST_BURST", "4")
	t.Setenv("GROWTH_STATE_BACKEND", "MEMORY")
	t.Setenv("GROWTH_RELAY_INTERVAL", "2m")
	t.Setenv("GROWTH_NOTIFICATION_LEVEL", "none")
	t.Setenv("GROWTH_METRICS_ENABLED", "true")
	t.Setenv("GROWTH_METRICS_PORT", "9100")
	t.Setenv("GROWTH_INFLUX_URL", "http://influx:8086")
	t.Setenv("GROWTH_INFLUX_INTERVAL", "30s")
	t.Setenv("GROWTH_EMAIL_TO", "a@example.com, b@example.com,")
	t.Setenv("GROWTH_RESEND_TO", "ops@example.com")

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}
	if cfg.APIBaseURL != "https://api.growth.example" {
		t.Fatalf("unexpected base url: %s", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.RequestTimeout)
	}
	if cfg.RequestsPerSecond != 2.5 || cfg.RequestBurst != 4 {
		t.Fatalf("unexpected rate limit: %v/%d", cfg.RequestsPerSecond, cfg.RequestBurst)
	}
	if cfg.StateBackend != "memory" {
		t.Fatalf("unexpected backend: %s", cfg.StateBackend)
	}
	if cfg.RelayInterval != 2*time.Minute || cfg.NotificationLevel != "none" {
		t.Fatalf("unexpected relay config: %v %s", cfg.RelayInterval, cfg.NotificationLevel)
	}
	if !cfg.MetricsEnabled || cfg.MetricsPort != 9100 {
		t.Fatalf("unexpected metrics config: %v %d", cfg.MetricsEnabled, cfg.MetricsPort)
	}
	if cfg.InfluxURL != "http://influx:8086" || cfg.InfluxInterval != 30*time.Second {
		t.Fatalf("unexpected influx config: %s %v", cfg.InfluxURL, cfg.InfluxInterval)
	}
	if len(cfg.EmailTo) != 2 || cfg.EmailTo[1] != "b@example.com" {
		t.Fatalf("unexpected email recipients: %v", cfg.EmailTo)
	}
	if len(cfg.ResendTo) != 1 {
		t.Fatalf("unexpected resend recipients: %v", cfg.ResendTo)
	}
}

func TestViteBaseURLFallback(t *testing.T) {
	t.Setenv("VITE_API_BASE_URL", "https://vite.example")
	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "https://vite.example" {
		t.Fatalf("expected VITE_API_BASE_URL fallback, got %s", cfg.APIBaseURL)
	}

	t.Setenv("GROWTH_API_BASE_URL", "https://growth.example")
	cfg = DefaultConfig()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "https://growth.example" {
		t.Fatalf("GROWTH_API_BASE_URL should win, got %s", cfg.APIBaseURL)
	}
}

func TestApplyEnvOverridesRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"GROWTH_REQUEST_TIMEOUT":     "soon",
		"GROWTH_REQUESTS_PER_SECOND": "fast",
		"GROWTH_METRICS_ENABLED":     "yes please",
		"GROWTH_METRICS_PORT":        "ninety",
		"GROWTH_RELAY_INTERVAL":      "1 minute",
	}
	for env, val := range cases {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			if err := ApplyEnvOverrides(DefaultConfig()); err == nil {
				t.Fatalf("expected error for %s=%q", env, val)
			}
		})
	}
}
