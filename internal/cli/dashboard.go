package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Dashboard panel indices.
const (
	panelMetrics = iota
	panelAlerts
	panelLogs
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	metrics *metricsSnapshot
	alerts  []alertSnapshot
	logs    []logSnapshot

	// State.
	loading bool
	err     error
}

type metricsSnapshot struct {
	cpuPercent    float64
	memoryPercent float64
	memoryUsedGB  float64
	memoryTotalGB float64
	disks         []diskSnapshot
}

type diskSnapshot struct {
	mountpoint string
	percent    float64
}

type alertSnapshot struct {
	severity string
	name     string
	value    float64
	since    string
}

type logSnapshot struct {
	level   string
	source  string
	message string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	metrics *metricsSnapshot
	alerts  []alertSnapshot
	logs    []logSnapshot
	err     error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	gaugeOK       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	gaugeWarning  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	gaugeCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	levelError = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	levelWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	levelInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelMetrics,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.metrics = msg.metrics
		m.alerts = msg.alerts
		m.logs = msg.logs
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" opswatch Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	metricsPanel := m.renderMetricsPanel()
	alertsPanel := m.renderAlertsPanel()
	logsPanel := m.renderLogsPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		logsPanel = m.applyPanelStyle(panelLogs, logsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, metricsPanel, alertsPanel, logsPanel)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		logsPanel = m.applyPanelStyle(panelLogs, logsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, metricsPanel, alertsPanel, logsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics"))
	b.WriteString("\n")

	if m.metrics == nil {
		b.WriteString("  Metrics backend unavailable.")
		return b.String()
	}

	md := m.metrics
	b.WriteString(renderGauge("CPU", md.cpuPercent))
	b.WriteString(renderGauge("Memory", md.memoryPercent))
	b.WriteString(fmt.Sprintf("  %-10s %.1f / %.1f GB\n", "", md.memoryUsedGB, md.memoryTotalGB))

	if len(md.disks) > 0 {
		b.WriteString("\n")
		for _, d := range md.disks {
			b.WriteString(renderGauge(d.mountpoint, d.percent))
		}
	}

	return b.String()
}

func renderGauge(label string, percent float64) string {
	if len(label) > 10 {
		label = label[:10]
	}
	return fmt.Sprintf("  %-10s %s\n", label, styleForPercent(percent).Render(fmt.Sprintf("%5.1f%%", percent)))
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s: %.2f\n", sev, a.name, a.value))
		b.WriteString(fmt.Sprintf("      since %s\n", a.since))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func (m dashboardModel) renderLogsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Recent Errors"))
	b.WriteString("\n")

	if len(m.logs) == 0 {
		b.WriteString("  No recent error logs.")
		return b.String()
	}

	for _, l := range m.logs {
		level := styleForLevel(l.level).Render(fmt.Sprintf("%-5s", strings.ToUpper(l.level)))
		msg := l.message
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n", level, l.source, msg))
	}

	return b.String()
}

func styleForPercent(percent float64) lipgloss.Style {
	switch {
	case percent >= 90:
		return gaugeCritical
	case percent >= 75:
		return gaugeWarning
	default:
		return gaugeOK
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "critical":
		return gaugeCritical
	case "warning":
		return gaugeWarning
	default:
		return gaugeOK
	}
}

func styleForLevel(level string) lipgloss.Style {
	switch strings.ToLower(level) {
	case "error", "critical", "fatal":
		return levelError
	case "warn", "warning":
		return levelWarn
	default:
		return levelInfo
	}
}

func loadData() tea.Msg {
	result := dataLoadedMsg{}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Metric readings. A dead metrics backend leaves the panel empty
	// rather than failing the whole dashboard.
	if Metrics != nil {
		snapshot := &metricsSnapshot{}
		loaded := false

		if cpu, err := Metrics.CurrentCPU(ctx); err == nil {
			snapshot.cpuPercent = cpu
			loaded = true
		}
		if mem, err := Metrics.MemoryInfo(ctx); err == nil {
			snapshot.memoryPercent = mem.Percent
			snapshot.memoryUsedGB = mem.UsedGB
			snapshot.memoryTotalGB = mem.TotalGB
			loaded = true
		}
		if disks, err := Metrics.DiskUsage(ctx); err == nil {
			for _, d := range disks {
				snapshot.disks = append(snapshot.disks, diskSnapshot{
					mountpoint: d.Mountpoint,
					percent:    d.Percent,
				})
			}
			loaded = true
		}
		if loaded {
			result.metrics = snapshot
		}
	}

	// Active alerts from the engine's state table.
	if Engine != nil {
		for _, a := range Engine.ActiveAlerts() {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				name:     a.RuleName,
				value:    a.Value,
				since:    a.Since.Format("15:04:05"),
			})
		}
	}

	// Recent error logs.
	if Logs != nil {
		if logs, err := Logs.ErrorLogs(ctx, time.Hour, 10); err == nil {
			for _, l := range logs.Lines {
				result.logs = append(result.logs, logSnapshot{
					level:   l.Level,
					source:  l.Source,
					message: l.Message,
				})
			}
		}
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for metrics, alerts, and logs",
	Long: `Launch an interactive terminal dashboard showing current metric
readings, active alerts, and recent error logs.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Metrics == nil {
			return fmt.Errorf("metrics client not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
