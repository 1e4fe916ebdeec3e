package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sirupsen/logrus"

	"github.com/valter-silva-au/opswatch/internal/alerting"
	"github.com/valter-silva-au/opswatch/internal/backend"
	"github.com/valter-silva-au/opswatch/pkg/models"
)

// Thresholds are the advisory levels tools compare readings against when
// describing them. They do not drive alerting; the engine has its own rules.
type Thresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// DefaultThresholds mirrors the default alert rule warning tiers.
func DefaultThresholds() Thresholds {
	return Thresholds{CPUPercent: 80, MemoryPercent: 85, DiskPercent: 90}
}

// AlertSource exposes the engine's active-alert snapshot to the
// get_active_alerts tool without handing over the engine itself.
type AlertSource interface {
	ActiveAlerts() []alerting.ActiveAlert
}

// Toolset binds the backend clients into tool handlers. model and alerts
// may be nil; the affected tools then degrade or report the source as
// unavailable.
type Toolset struct {
	metrics    backend.MetricsClient
	logs       backend.LogsClient
	model      backend.ModelClient
	alerts     AlertSource
	thresholds Thresholds
	log        *logrus.Entry
}

// NewToolset creates a Toolset over the given clients.
func NewToolset(metrics backend.MetricsClient, logs backend.LogsClient, model backend.ModelClient, alerts AlertSource, thresholds Thresholds) *Toolset {
	return &Toolset{
		metrics:    metrics,
		logs:       logs,
		model:      model,
		alerts:     alerts,
		thresholds: thresholds,
		log:        logrus.WithField("component", "tools"),
	}
}

// RegisterAll registers every tool on the registry.
func (t *Toolset) RegisterAll(r *Registry) error {
	descriptors := []Descriptor{
		{
			Name:        "get_cpu_usage",
			Description: "Get the current server CPU usage in percent, with an LLM assessment of whether the load is concerning.",
			InputSchema: objectSchema(nil, nil),
			Handler:     t.handleCPUUsage,
		},
		{
			Name:        "get_memory_status",
			Description: "Get current RAM usage: total, used, available and percent used, with an LLM assessment.",
			InputSchema: objectSchema(nil, nil),
			Handler:     t.handleMemoryStatus,
		},
		{
			Name:        "get_disk_usage",
			Description: "Get the fill level of every mounted filesystem.",
			InputSchema: objectSchema(nil, nil),
			Handler:     t.handleDiskUsage,
		},
		{
			Name:        "get_network_status",
			Description: "Get network interface traffic, established connection counts and packet error rates.",
			InputSchema: objectSchema(nil, nil),
			Handler:     t.handleNetworkStatus,
		},
		{
			Name:        "get_top_processes",
			Description: "List the processes consuming the most CPU and memory.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"limit": {Type: "number", Description: "Number of processes per listing (default 10)."},
			}, nil),
			Handler: t.handleTopProcesses,
		},
		{
			Name:        "search_error_logs",
			Description: "Find error-looking log lines over a recent time window and have the LLM analyze them.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"hours": {Type: "number", Description: "How many hours back to search (default 1)."},
				"limit": {Type: "number", Description: "Maximum number of lines to return (default 20)."},
			}, nil),
			Handler: t.handleSearchErrorLogs,
		},
		{
			Name:        "get_container_logs",
			Description: "Get recent log lines from one container.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"container": {Type: "string", Description: "Container name to read logs from."},
				"hours":     {Type: "number", Description: "How many hours back to read (default 1)."},
				"limit":     {Type: "number", Description: "Maximum number of lines (default 50)."},
			}, []string{"container"}),
			Handler: t.handleContainerLogs,
		},
		{
			Name:        "query_metric_range",
			Description: "Run a raw PromQL range query and return the samples.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"query":        {Type: "string", Description: "PromQL expression to evaluate."},
				"minutes":      {Type: "number", Description: "Window length in minutes ending now (default 60)."},
				"step_seconds": {Type: "number", Description: "Resolution step in seconds (default 60)."},
			}, []string{"query"}),
			Handler: t.handleQueryMetricRange,
		},
		{
			Name:        "get_system_status",
			Description: "Composite health report: CPU, memory, disk and recent error logs in one call, with an overall LLM summary. Sources that fail are reported as unavailable instead of failing the whole call.",
			InputSchema: objectSchema(nil, nil),
			Handler:     t.handleSystemStatus,
		},
		{
			Name:        "get_active_alerts",
			Description: "List the alert rules currently in a warning or critical state.",
			InputSchema: objectSchema(nil, nil),
			Handler:     t.handleActiveAlerts,
		},
	}

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// --- Handlers ---

func (t *Toolset) handleCPUUsage(ctx context.Context, _ map[string]any) (*Result, error) {
	cpu, err := t.metrics.CurrentCPU(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying cpu usage: %w", err)
	}

	status := "NORMAL"
	if cpu > t.thresholds.CPUPercent {
		status = "HIGH"
	}

	res := &Result{
		Data: map[string]any{
			"cpu_percent": cpu,
			"threshold":   t.thresholds.CPUPercent,
			"high":        cpu > t.thresholds.CPUPercent,
		},
		Summary: fmt.Sprintf("CPU usage: %.2f%% (threshold %.0f%%) - %s", cpu, t.thresholds.CPUPercent, status),
	}

	t.appendAnalysis(ctx, res, func() (string, error) {
		return t.model.AnalyzeMetrics(ctx, map[string]any{
			"cpu_percent": cpu,
			"threshold":   t.thresholds.CPUPercent,
			"status":      strings.ToLower(status),
		}, "analysis of current CPU load")
	})
	return res, nil
}

func (t *Toolset) handleMemoryStatus(ctx context.Context, _ map[string]any) (*Result, error) {
	mem, err := t.metrics.MemoryInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying memory status: %w", err)
	}

	status := "NORMAL"
	if mem.Percent > t.thresholds.MemoryPercent {
		status = "HIGH"
	}

	res := &Result{
		Data: map[string]any{
			"total_gb":     mem.TotalGB,
			"used_gb":      mem.UsedGB,
			"available_gb": mem.AvailableGB,
			"percent":      mem.Percent,
			"threshold":    t.thresholds.MemoryPercent,
			"high":         mem.Percent > t.thresholds.MemoryPercent,
		},
		Summary: fmt.Sprintf("Memory: %.2f GB used of %.2f GB (%.2f%%, threshold %.0f%%) - %s",
			mem.UsedGB, mem.TotalGB, mem.Percent, t.thresholds.MemoryPercent, status),
	}

	t.appendAnalysis(ctx, res, func() (string, error) {
		return t.model.AnalyzeMetrics(ctx, map[string]any{
			"total_gb":     mem.TotalGB,
			"used_gb":      mem.UsedGB,
			"available_gb": mem.AvailableGB,
			"percent":      mem.Percent,
		}, "analysis of current memory usage")
	})
	return res, nil
}

func (t *Toolset) handleDiskUsage(ctx context.Context, _ map[string]any) (*Result, error) {
	disks, err := t.metrics.DiskUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying disk usage: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Disk usage across %d filesystem(s):", len(disks))
	for _, d := range disks {
		status := "OK"
		if d.Percent > t.thresholds.DiskPercent {
			status = "HIGH"
		}
		fmt.Fprintf(&b, "\n  %s (%s): %.1f%% [%s]", d.Mountpoint, d.Device, d.Percent, status)
	}

	return &Result{
		Data: map[string]any{
			"disks":     disks,
			"count":     len(disks),
			"threshold": t.thresholds.DiskPercent,
		},
		Summary: b.String(),
	}, nil
}

func (t *Toolset) handleNetworkStatus(ctx context.Context, _ map[string]any) (*Result, error) {
	status, err := t.metrics.NetworkStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying network status: %w", err)
	}

	active := 0
	for _, iface := range status.Interfaces {
		if iface.Up {
			active++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Network status: %d interface(s), %d up", len(status.Interfaces), active)
	for _, iface := range status.Interfaces {
		state := "DOWN"
		if iface.Up {
			state = "UP"
		}
		fmt.Fprintf(&b, "\n  %s: RX=%.2fGB, TX=%.2fGB [%s]", iface.Device, iface.ReceivedGB, iface.TransmittedGB, state)
	}
	fmt.Fprintf(&b, "\n  TCP established: %d", status.TCPEstablished)
	fmt.Fprintf(&b, "\n  Error rate: %.2f/s", status.ErrorRate)

	return &Result{
		Data: map[string]any{
			"interfaces":        status.Interfaces,
			"active_interfaces": active,
			"tcp_established":   status.TCPEstablished,
			"error_rate":        status.ErrorRate,
		},
		Summary: b.String(),
	}, nil
}

func (t *Toolset) handleTopProcesses(ctx context.Context, args map[string]any) (*Result, error) {
	limit, err := intArg(args, "limit", 10, 1, 50)
	if err != nil {
		return nil, err
	}

	byCPU, err := t.metrics.TopProcessesByCPU(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking processes by cpu: %w", err)
	}
	byMemory, err := t.metrics.TopProcessesByMemory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking processes by memory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top processes (limit %d):\nCPU:", limit)
	if len(byCPU) == 0 {
		b.WriteString("\n  no process data available")
	}
	for i, p := range byCPU {
		fmt.Fprintf(&b, "\n  %d. %s: %.2f%%", i+1, p.Name, p.CPUPercent)
	}
	b.WriteString("\nMemory:")
	if len(byMemory) == 0 {
		b.WriteString("\n  no process data available")
	}
	for i, p := range byMemory {
		fmt.Fprintf(&b, "\n  %d. %s: %.2fGB (%.1f%%)", i+1, p.Name, p.MemoryGB, p.MemoryPercent)
	}

	return &Result{
		Data: map[string]any{
			"limit":     limit,
			"by_cpu":    byCPU,
			"by_memory": byMemory,
		},
		Summary: b.String(),
	}, nil
}

func (t *Toolset) handleSearchErrorLogs(ctx context.Context, args map[string]any) (*Result, error) {
	hours, err := intArg(args, "hours", 1, 1, 168)
	if err != nil {
		return nil, err
	}
	limit, err := intArg(args, "limit", 20, 1, 500)
	if err != nil {
		return nil, err
	}

	result, err := t.logs.ErrorLogs(ctx, time.Duration(hours)*time.Hour, limit)
	if err != nil {
		return nil, fmt.Errorf("searching error logs: %w", err)
	}

	res := &Result{
		Data: map[string]any{
			"count": len(result.Lines),
			"hours": hours,
			"lines": result.Lines,
		},
	}

	if len(result.Lines) == 0 {
		res.Summary = fmt.Sprintf("No errors found in the last %d hour(s).", hours)
		return res, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d error(s) in the last %d hour(s). Most recent:", len(result.Lines), hours)
	for _, line := range tailLines(result.Lines, 5) {
		fmt.Fprintf(&b, "\n  [%s] %s: %s",
			line.Timestamp.Format("2006-01-02 15:04:05"), line.Source, truncate(line.Message, 150))
	}
	res.Summary = b.String()

	t.appendAnalysis(ctx, res, func() (string, error) {
		messages := make([]string, 0, 10)
		for _, line := range tailLines(result.Lines, 10) {
			messages = append(messages, line.Message)
		}
		return t.model.AnalyzeLogs(ctx, messages, fmt.Sprintf("errors from the last %d hour(s)", hours))
	})
	return res, nil
}

func (t *Toolset) handleContainerLogs(ctx context.Context, args map[string]any) (*Result, error) {
	container, err := stringArg(args, "container", "", true)
	if err != nil {
		return nil, err
	}
	hours, err := intArg(args, "hours", 1, 1, 168)
	if err != nil {
		return nil, err
	}
	limit, err := intArg(args, "limit", 50, 1, 500)
	if err != nil {
		return nil, err
	}

	result, err := t.logs.ContainerLogs(ctx, container, time.Duration(hours)*time.Hour, limit)
	if err != nil {
		return nil, fmt.Errorf("reading logs for %s: %w", container, err)
	}

	return &Result{
		Data: map[string]any{
			"container": container,
			"count":     len(result.Lines),
			"lines":     result.Lines,
		},
		Summary: fmt.Sprintf("%d line(s) from %s over the last %d hour(s).", len(result.Lines), container, hours),
	}, nil
}

func (t *Toolset) handleQueryMetricRange(ctx context.Context, args map[string]any) (*Result, error) {
	query, err := stringArg(args, "query", "", true)
	if err != nil {
		return nil, err
	}
	minutes, err := intArg(args, "minutes", 60, 1, 7*24*60)
	if err != nil {
		return nil, err
	}
	stepSeconds, err := intArg(args, "step_seconds", 60, 1, 3600)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	start := end.Add(-time.Duration(minutes) * time.Minute)
	samples, err := t.metrics.RangeValues(ctx, query, start, end, time.Duration(stepSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}

	return &Result{
		Data: map[string]any{
			"query":   query,
			"count":   len(samples),
			"samples": samples,
		},
		Summary: fmt.Sprintf("%d sample(s) for %q over the last %d minute(s).", len(samples), query, minutes),
	}, nil
}

// handleSystemStatus aggregates every data source. A failing source is
// folded into the unavailable list instead of aborting the call; only when
// every source fails does the tool itself fail.
func (t *Toolset) handleSystemStatus(ctx context.Context, _ map[string]any) (*Result, error) {
	res := &Result{Data: map[string]any{}}
	var sections []string
	var failures []error

	cpu, err := t.metrics.CurrentCPU(ctx)
	if err != nil {
		res.Unavailable = append(res.Unavailable, "cpu")
		failures = append(failures, fmt.Errorf("cpu: %w", err))
	} else {
		res.Data["cpu_percent"] = cpu
		sections = append(sections, fmt.Sprintf("CPU: %.2f%%", cpu))
	}

	mem, err := t.metrics.MemoryInfo(ctx)
	if err != nil {
		res.Unavailable = append(res.Unavailable, "memory")
		failures = append(failures, fmt.Errorf("memory: %w", err))
	} else {
		res.Data["memory_percent"] = mem.Percent
		res.Data["memory_used_gb"] = mem.UsedGB
		res.Data["memory_total_gb"] = mem.TotalGB
		sections = append(sections, fmt.Sprintf("Memory: %.2f%% (%.2f/%.2f GB)", mem.Percent, mem.UsedGB, mem.TotalGB))
	}

	disks, err := t.metrics.DiskUsage(ctx)
	if err != nil {
		res.Unavailable = append(res.Unavailable, "disk")
		failures = append(failures, fmt.Errorf("disk: %w", err))
	} else {
		res.Data["disks"] = disks
		worst := 0.0
		for _, d := range disks {
			if d.Percent > worst {
				worst = d.Percent
			}
		}
		sections = append(sections, fmt.Sprintf("Disk: %d filesystem(s), fullest at %.1f%%", len(disks), worst))
	}

	errLogs, err := t.logs.ErrorLogs(ctx, time.Hour, 20)
	if err != nil {
		res.Unavailable = append(res.Unavailable, "logs")
		failures = append(failures, fmt.Errorf("logs: %w", err))
	} else {
		res.Data["recent_errors"] = len(errLogs.Lines)
		sections = append(sections, fmt.Sprintf("Logs: %d error(s) in the last hour", len(errLogs.Lines)))
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("all status sources failed: %w", errors.Join(failures...))
	}

	summary := "System status:\n  " + strings.Join(sections, "\n  ")
	if len(res.Unavailable) > 0 {
		summary += fmt.Sprintf("\n  Unavailable data sources: %s", strings.Join(res.Unavailable, ", "))
	}
	res.Summary = summary

	t.appendAnalysis(ctx, res, func() (string, error) {
		return t.model.AnalyzeMetrics(ctx, res.Data, "overall system status report")
	})
	return res, nil
}

func (t *Toolset) handleActiveAlerts(_ context.Context, _ map[string]any) (*Result, error) {
	if t.alerts == nil {
		return nil, fmt.Errorf("alert engine not available")
	}

	active := t.alerts.ActiveAlerts()
	breakdown := map[string]int{}
	for _, a := range active {
		breakdown[string(a.Severity)]++
	}

	res := &Result{
		Data: map[string]any{
			"count":              len(active),
			"alerts":             active,
			"severity_breakdown": breakdown,
		},
	}

	if len(active) == 0 {
		res.Summary = "No active alerts."
		return res, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d active alert(s):", len(active))
	for _, a := range active {
		fmt.Fprintf(&b, "\n  [%s] %s: current value %.2f (since %s)",
			strings.ToUpper(string(a.Severity)), a.RuleName, a.Value, a.Since.Format("15:04:05"))
	}
	res.Summary = b.String()
	return res, nil
}

// --- Helpers ---

// appendAnalysis runs an LLM analysis and folds the outcome into the
// result. A model failure annotates the summary and unavailable list; it
// never discards data already obtained from other sources.
func (t *Toolset) appendAnalysis(_ context.Context, res *Result, analyze func() (string, error)) {
	if t.model == nil {
		return
	}

	analysis, err := analyze()
	if err != nil {
		res.Unavailable = append(res.Unavailable, "model")
		res.Summary += "\n\nLLM analysis unavailable."
		t.log.Warnf("model analysis failed: %v", err)
		return
	}
	res.Summary += "\n\nLLM analysis:\n" + strings.TrimSpace(analysis)
}

func objectSchema(props map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func tailLines(lines []models.LogLine, n int) []models.LogLine {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
