package cli

import (
	"github.com/valter-silva-au/opswatch/internal/alerting"
	"github.com/valter-silva-au/opswatch/internal/backend"
	"github.com/valter-silva-au/opswatch/internal/config"
	"github.com/valter-silva-au/opswatch/internal/tools"
)

// Service instances, set during app initialization in app.go.
var (
	Cfg      *config.Config
	Metrics  backend.MetricsClient
	Logs     backend.LogsClient
	Model    backend.ModelClient
	Registry *tools.Registry
	Engine   *alerting.Engine
)
