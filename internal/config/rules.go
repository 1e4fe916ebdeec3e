package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/opswatch/internal/alerting"
)

// ruleSpec is the YAML shape of one rule. Cooldown is a duration string
// ("5m", "90s") so hand-edited files stay readable.
type ruleSpec struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Query     string  `yaml:"query"`
	Warning   float64 `yaml:"warning"`
	Critical  float64 `yaml:"critical"`
	Direction string  `yaml:"direction"`
	Cooldown  string  `yaml:"cooldown"`
}

type rulesFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

// LoadRules reads alert rules from the given YAML file. An empty path means
// "no file configured" and yields the built-in rule set. Every loaded rule
// is validated; a single bad rule fails the whole load so a typo never
// silently disables alerting.
func LoadRules(path string) ([]alerting.Rule, error) {
	if path == "" {
		return alerting.DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}

	rules := make([]alerting.Rule, 0, len(file.Rules))
	for _, spec := range file.Rules {
		rule, err := specToRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rules file %s: %w", path, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func specToRule(spec ruleSpec) (alerting.Rule, error) {
	rule := alerting.Rule{
		ID:       spec.ID,
		Name:     spec.Name,
		Query:    spec.Query,
		Warning:  spec.Warning,
		Critical: spec.Critical,
	}

	switch spec.Direction {
	case "", "above":
		rule.Direction = alerting.DirectionAbove
	case "below":
		rule.Direction = alerting.DirectionBelow
	default:
		return alerting.Rule{}, fmt.Errorf("rule %s: unknown direction %q", spec.ID, spec.Direction)
	}

	if spec.Cooldown == "" {
		rule.Cooldown = 5 * time.Minute
	} else {
		cooldown, err := time.ParseDuration(spec.Cooldown)
		if err != nil {
			return alerting.Rule{}, fmt.Errorf("rule %s: parsing cooldown %q: %w", spec.ID, spec.Cooldown, err)
		}
		rule.Cooldown = cooldown
	}

	if rule.Name == "" {
		rule.Name = rule.ID
	}

	if err := rule.Validate(); err != nil {
		return alerting.Rule{}, err
	}

	return rule, nil
}
