// Package config loads and validates the opswatch configuration from an
// .opswatch.yaml file, OPSWATCH_* environment variables, and built-in
// defaults, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BackendConfig holds the connection settings for one HTTP backend.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ModelConfig holds the connection settings for the language model backend.
type ModelConfig struct {
	URL     string        `yaml:"url"`
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
}

// TelegramConfig holds the notification channel credentials. Both fields
// must be set for notifications to be delivered; otherwise events are only
// logged.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// AlertingConfig holds the evaluation loop settings.
type AlertingConfig struct {
	Interval         time.Duration `yaml:"interval"`
	NotifyOnRecovery bool          `yaml:"notify_on_recovery"`
	RulesFile        string        `yaml:"rules_file"`
}

// ThresholdsConfig holds the advisory thresholds the status tools compare
// readings against when phrasing their summaries.
type ThresholdsConfig struct {
	CPUPercent    float64 `yaml:"cpu_percent"`
	MemoryPercent float64 `yaml:"memory_percent"`
	DiskPercent   float64 `yaml:"disk_percent"`
}

// Config is the complete opswatch configuration.
type Config struct {
	Prometheus BackendConfig
	Loki       BackendConfig
	Model      ModelConfig
	Telegram   TelegramConfig
	Alerting   AlertingConfig
	Thresholds ThresholdsConfig
	Listen     string
}

// Default returns a Config populated with sensible defaults for a
// single-host monitoring stack.
func Default() *Config {
	return &Config{
		Prometheus: BackendConfig{URL: "http://localhost:9090", Timeout: 10 * time.Second},
		Loki:       BackendConfig{URL: "http://localhost:3100", Timeout: 15 * time.Second},
		Model: ModelConfig{
			URL:     "http://localhost:11434",
			Name:    "llama3.1:8b",
			Timeout: 120 * time.Second,
		},
		Alerting: AlertingConfig{
			Interval:         30 * time.Second,
			NotifyOnRecovery: true,
			RulesFile:        "",
		},
		Thresholds: ThresholdsConfig{CPUPercent: 80, MemoryPercent: 85, DiskPercent: 90},
		Listen:     ":8700",
	}
}

// Load reads .opswatch.yaml from the given directory (or the current
// directory when dir is empty) and overlays OPSWATCH_* environment
// variables. A missing config file is not an error; defaults apply.
func Load(dir string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName(".opswatch")
	v.SetConfigType("yaml")
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)

	v.SetEnvPrefix("OPSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("prometheus.url", cfg.Prometheus.URL)
	v.SetDefault("prometheus.timeout", cfg.Prometheus.Timeout)
	v.SetDefault("loki.url", cfg.Loki.URL)
	v.SetDefault("loki.timeout", cfg.Loki.Timeout)
	v.SetDefault("model.url", cfg.Model.URL)
	v.SetDefault("model.name", cfg.Model.Name)
	v.SetDefault("model.timeout", cfg.Model.Timeout)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("alerting.interval", cfg.Alerting.Interval)
	v.SetDefault("alerting.notify_on_recovery", cfg.Alerting.NotifyOnRecovery)
	v.SetDefault("alerting.rules_file", cfg.Alerting.RulesFile)
	v.SetDefault("thresholds.cpu_percent", cfg.Thresholds.CPUPercent)
	v.SetDefault("thresholds.memory_percent", cfg.Thresholds.MemoryPercent)
	v.SetDefault("thresholds.disk_percent", cfg.Thresholds.DiskPercent)
	v.SetDefault("listen", cfg.Listen)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading .opswatch.yaml: %w", err)
		}
	}

	cfg.Prometheus.URL = v.GetString("prometheus.url")
	cfg.Prometheus.Timeout = v.GetDuration("prometheus.timeout")
	cfg.Loki.URL = v.GetString("loki.url")
	cfg.Loki.Timeout = v.GetDuration("loki.timeout")
	cfg.Model.URL = v.GetString("model.url")
	cfg.Model.Name = v.GetString("model.name")
	cfg.Model.Timeout = v.GetDuration("model.timeout")
	cfg.Telegram.BotToken = v.GetString("telegram.bot_token")
	cfg.Telegram.ChatID = v.GetString("telegram.chat_id")
	cfg.Alerting.Interval = v.GetDuration("alerting.interval")
	cfg.Alerting.NotifyOnRecovery = v.GetBool("alerting.notify_on_recovery")
	cfg.Alerting.RulesFile = v.GetString("alerting.rules_file")
	cfg.Thresholds.CPUPercent = v.GetFloat64("thresholds.cpu_percent")
	cfg.Thresholds.MemoryPercent = v.GetFloat64("thresholds.memory_percent")
	cfg.Thresholds.DiskPercent = v.GetFloat64("thresholds.disk_percent")
	cfg.Listen = v.GetString("listen")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values that cannot work and returns
// a message naming every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Prometheus.URL == "" {
		errs = append(errs, "prometheus.url must not be empty")
	}
	if c.Loki.URL == "" {
		errs = append(errs, "loki.url must not be empty")
	}
	if c.Model.URL == "" {
		errs = append(errs, "model.url must not be empty")
	}
	if c.Model.Name == "" {
		errs = append(errs, "model.name must not be empty")
	}

	if c.Prometheus.Timeout <= 0 {
		errs = append(errs, "prometheus.timeout must be positive")
	}
	if c.Loki.Timeout <= 0 {
		errs = append(errs, "loki.timeout must be positive")
	}
	if c.Model.Timeout <= 0 {
		errs = append(errs, "model.timeout must be positive")
	}

	if c.Alerting.Interval < time.Second {
		errs = append(errs, fmt.Sprintf("alerting.interval %s is too short, minimum is 1s", c.Alerting.Interval))
	}

	for _, t := range []struct {
		name  string
		value float64
	}{
		{"thresholds.cpu_percent", c.Thresholds.CPUPercent},
		{"thresholds.memory_percent", c.Thresholds.MemoryPercent},
		{"thresholds.disk_percent", c.Thresholds.DiskPercent},
	} {
		if t.value <= 0 || t.value > 100 {
			errs = append(errs, fmt.Sprintf("%s %.1f is invalid, must be in (0, 100]", t.name, t.value))
		}
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		errs = append(errs, "telegram.bot_token and telegram.chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// NotificationsEnabled reports whether a notification channel is configured.
func (c *Config) NotificationsEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
