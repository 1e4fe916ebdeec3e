// Package internal provides the App struct that wires all components of the
// opswatch monitoring assistant together and initializes the CLI layer.
package internal

import (
	"fmt"

	"github.com/valter-silva-au/opswatch/internal/alerting"
	"github.com/valter-silva-au/opswatch/internal/backend"
	"github.com/valter-silva-au/opswatch/internal/cli"
	"github.com/valter-silva-au/opswatch/internal/config"
	"github.com/valter-silva-au/opswatch/internal/tools"
)

// App holds all service dependencies for the opswatch system.
type App struct {
	Config *config.Config

	// Backend clients
	Metrics backend.MetricsClient
	Logs    backend.LogsClient
	Model   backend.ModelClient

	// Tool dispatch
	Registry *tools.Registry
	Toolset  *tools.Toolset

	// Alerting
	Notifier alerting.Notifier
	Engine   *alerting.Engine
}

// NewApp loads configuration from configDir (empty means the current
// directory) and wires all components.
func NewApp(configDir string) (*App, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	app := &App{Config: cfg}

	// --- Backend clients ---
	app.Metrics = backend.NewPrometheusClient(cfg.Prometheus.URL, cfg.Prometheus.Timeout)
	app.Logs = backend.NewLokiClient(cfg.Loki.URL, cfg.Loki.Timeout)
	app.Model = backend.NewOllamaClient(cfg.Model.URL, cfg.Model.Name, cfg.Model.Timeout)

	// --- Alerting ---
	rules, err := config.LoadRules(cfg.Alerting.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading alert rules: %w", err)
	}
	if cfg.NotificationsEnabled() {
		app.Notifier = alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	app.Engine = alerting.NewEngine(app.Metrics, app.Notifier, rules, alerting.Options{
		Interval:         cfg.Alerting.Interval,
		NotifyOnRecovery: cfg.Alerting.NotifyOnRecovery,
	})

	// --- Tool dispatch ---
	thresholds := tools.Thresholds{
		CPUPercent:    cfg.Thresholds.CPUPercent,
		MemoryPercent: cfg.Thresholds.MemoryPercent,
		DiskPercent:   cfg.Thresholds.DiskPercent,
	}
	app.Toolset = tools.NewToolset(app.Metrics, app.Logs, app.Model, app.Engine, thresholds)
	app.Registry = tools.NewRegistry()
	if err := app.Toolset.RegisterAll(app.Registry); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	// --- Wire CLI package-level variables ---
	cli.Cfg = cfg
	cli.Metrics = app.Metrics
	cli.Logs = app.Logs
	cli.Model = app.Model
	cli.Registry = app.Registry
	cli.Engine = app.Engine

	return app, nil
}
