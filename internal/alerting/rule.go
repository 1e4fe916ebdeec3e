package alerting

import (
	"fmt"
	"time"
)

// Severity is the ordered alert classification: none < warning < critical.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparison.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Direction states which side of the thresholds is the firing condition.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Rule is a static alerting rule loaded once at startup and immutable for
// the engine's lifetime.
type Rule struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Query     string        `yaml:"query"`
	Warning   float64       `yaml:"warning"`
	Critical  float64       `yaml:"critical"`
	Direction Direction     `yaml:"direction"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// Severity classifies a metric value against the rule thresholds.
// The critical tier wins when both are crossed.
func (r Rule) Severity(value float64) Severity {
	switch r.Direction {
	case DirectionBelow:
		if value < r.Critical {
			return SeverityCritical
		}
		if value < r.Warning {
			return SeverityWarning
		}
	default:
		if value > r.Critical {
			return SeverityCritical
		}
		if value > r.Warning {
			return SeverityWarning
		}
	}
	return SeverityNone
}

// comparison renders the direction as the operator used in event messages.
func (r Rule) comparison() string {
	if r.Direction == DirectionBelow {
		return "<"
	}
	return ">"
}

// Validate checks the rule for the mistakes a hand-edited rules file tends
// to contain.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if r.Query == "" {
		return fmt.Errorf("rule %s has no query", r.ID)
	}
	switch r.Direction {
	case DirectionAbove:
		if r.Critical < r.Warning {
			return fmt.Errorf("rule %s: critical threshold %.2f below warning %.2f", r.ID, r.Critical, r.Warning)
		}
	case DirectionBelow:
		if r.Critical > r.Warning {
			return fmt.Errorf("rule %s: critical threshold %.2f above warning %.2f", r.ID, r.Critical, r.Warning)
		}
	default:
		return fmt.Errorf("rule %s: unknown direction %q", r.ID, r.Direction)
	}
	if r.Cooldown <= 0 {
		return fmt.Errorf("rule %s: cooldown must be positive", r.ID)
	}
	return nil
}

// DefaultRules returns the built-in rule set used when no rules file exists.
// Thresholds follow the conventional node exporter expectations: warn on
// sustained high usage, go critical near saturation.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:        "cpu-usage",
			Name:      "High CPU Usage",
			Query:     cpuRuleQuery,
			Warning:   80,
			Critical:  95,
			Direction: DirectionAbove,
			Cooldown:  5 * time.Minute,
		},
		{
			ID:        "memory-usage",
			Name:      "High Memory Usage",
			Query:     memoryRuleQuery,
			Warning:   85,
			Critical:  95,
			Direction: DirectionAbove,
			Cooldown:  5 * time.Minute,
		},
		{
			ID:        "disk-usage",
			Name:      "High Disk Usage",
			Query:     diskRuleQuery,
			Warning:   90,
			Critical:  97,
			Direction: DirectionAbove,
			Cooldown:  10 * time.Minute,
		},
		{
			ID:        "network-errors",
			Name:      "Network Errors",
			Query:     networkRuleQuery,
			Warning:   100,
			Critical:  500,
			Direction: DirectionAbove,
			Cooldown:  5 * time.Minute,
		},
	}
}

const (
	cpuRuleQuery     = `100 - (avg(rate(node_cpu_seconds_total{mode="idle"}[5m])) * 100)`
	memoryRuleQuery  = `(1 - (node_memory_MemAvailable_bytes / node_memory_MemTotal_bytes)) * 100`
	diskRuleQuery    = `max(100 - (node_filesystem_avail_bytes{fstype!="tmpfs",fstype!="ramfs"} / node_filesystem_size_bytes{fstype!="tmpfs",fstype!="ramfs"} * 100))`
	networkRuleQuery = `sum(rate(node_network_receive_errs_total[5m]) + rate(node_network_transmit_errs_total[5m]))`
)
