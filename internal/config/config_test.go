package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".opswatch.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return dir
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Prometheus.URL != "http://localhost:9090" {
		t.Errorf("expected default prometheus url, got %s", cfg.Prometheus.URL)
	}
	if cfg.Alerting.Interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %s", cfg.Alerting.Interval)
	}
	if !cfg.Alerting.NotifyOnRecovery {
		t.Error("expected notify_on_recovery to default to true")
	}
	if cfg.NotificationsEnabled() {
		t.Error("notifications should be disabled without telegram credentials")
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := writeConfig(t, `
prometheus:
  url: http://prom.internal:9090
  timeout: 5s
loki:
  url: http://loki.internal:3100
model:
  name: mistral:7b
telegram:
  bot_token: "123:abc"
  chat_id: "-100200300"
alerting:
  interval: 1m
  notify_on_recovery: false
thresholds:
  cpu_percent: 70
listen: ":9000"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Prometheus.URL != "http://prom.internal:9090" {
		t.Errorf("prometheus url not read, got %s", cfg.Prometheus.URL)
	}
	if cfg.Prometheus.Timeout != 5*time.Second {
		t.Errorf("prometheus timeout not read, got %s", cfg.Prometheus.Timeout)
	}
	if cfg.Model.Name != "mistral:7b" {
		t.Errorf("model name not read, got %s", cfg.Model.Name)
	}
	if cfg.Alerting.Interval != time.Minute {
		t.Errorf("interval not read, got %s", cfg.Alerting.Interval)
	}
	if cfg.Alerting.NotifyOnRecovery {
		t.Error("notify_on_recovery should be false")
	}
	if cfg.Thresholds.CPUPercent != 70 {
		t.Errorf("cpu threshold not read, got %.1f", cfg.Thresholds.CPUPercent)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("listen not read, got %s", cfg.Listen)
	}
	if !cfg.NotificationsEnabled() {
		t.Error("notifications should be enabled with both telegram credentials")
	}
	// Unset keys fall back to defaults.
	if cfg.Thresholds.MemoryPercent != 85 {
		t.Errorf("expected default memory threshold, got %.1f", cfg.Thresholds.MemoryPercent)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "empty prometheus url",
			content: "prometheus:\n  url: \"\"\n",
			wantMsg: "prometheus.url",
		},
		{
			name:    "interval too short",
			content: "alerting:\n  interval: 100ms\n",
			wantMsg: "alerting.interval",
		},
		{
			name:    "threshold out of range",
			content: "thresholds:\n  disk_percent: 150\n",
			wantMsg: "thresholds.disk_percent",
		},
		{
			name:    "token without chat id",
			content: "telegram:\n  bot_token: \"123:abc\"\n",
			wantMsg: "telegram.bot_token and telegram.chat_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}
