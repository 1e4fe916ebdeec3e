package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/valter-silva-au/opswatch/internal/backend"
)

// Event is an emitted alert fact, consumed once by the Notifier.
type Event struct {
	RuleID   string    `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	Severity Severity  `json:"severity"`
	Value    float64   `json:"value"`
	FiredAt  time.Time `json:"fired_at"`
	Message  string    `json:"message"`
	Recovery bool      `json:"recovery,omitempty"`
}

// ActiveAlert is an immutable snapshot of one rule currently in a firing
// condition, as returned by ActiveAlerts. It is a copy; holding it never
// observes later state changes.
type ActiveAlert struct {
	RuleID   string    `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	Severity Severity  `json:"severity"`
	Value    float64   `json:"value"`
	Since    time.Time `json:"since"`
}

// ruleState is the engine-private state of one rule. The table is created
// once at engine construction, never grows or shrinks, and is written only
// by the evaluation loop.
type ruleState struct {
	severity    Severity
	lastValue   float64
	lastFiredAt time.Time
	since       time.Time
}

// Options tune the engine. The zero value uses a 30 second interval, the
// wall clock, and no recovery notifications.
type Options struct {
	// Interval between evaluation cycles.
	Interval time.Duration
	// NotifyOnRecovery also sends a notification when a rule drops back
	// below its thresholds.
	NotifyOnRecovery bool
	// Clock overrides the time source. Tests use this to drive cooldown
	// windows without real waits.
	Clock func() time.Time
}

// Engine evaluates the rule set against current metric readings on a fixed
// interval. The evaluation loop is the single writer of rule state; other
// goroutines may only read snapshot copies via ActiveAlerts.
type Engine struct {
	metrics  backend.MetricsClient
	notifier Notifier
	rules    []Rule
	interval time.Duration
	recover  bool
	now      func() time.Time
	log      *logrus.Entry

	mu     sync.RWMutex
	states map[string]*ruleState
}

// NewEngine creates an Engine over the given rules. notifier may be nil, in
// which case events are only logged.
func NewEngine(metrics backend.MetricsClient, notifier Notifier, rules []Rule, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	states := make(map[string]*ruleState, len(rules))
	for _, r := range rules {
		states[r.ID] = &ruleState{severity: SeverityNone}
	}

	return &Engine{
		metrics:  metrics,
		notifier: notifier,
		rules:    rules,
		interval: opts.Interval,
		recover:  opts.NotifyOnRecovery,
		now:      opts.Clock,
		log:      logrus.WithField("component", "alerting"),
		states:   states,
	}
}

// Run evaluates all rules on the configured interval until ctx is cancelled.
// An in-progress cycle finishes before Run returns.
func (e *Engine) Run(ctx context.Context) {
	e.log.Infof("engine started: %d rules, interval %s", len(e.rules), e.interval)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return
		case <-ticker.C:
			e.EvaluateCycle(ctx)
		}
	}
}

// EvaluateCycle evaluates every rule once against its current metric
// reading and returns the events that fired. A metric fetch failure for one
// rule is logged and skips that rule only; it never aborts the cycle.
func (e *Engine) EvaluateCycle(ctx context.Context) []Event {
	var events []Event
	for _, rule := range e.rules {
		if ctx.Err() != nil {
			return events
		}

		snap, err := e.metrics.CurrentValue(ctx, rule.Query)
		if err != nil {
			e.log.WithField("rule", rule.ID).Warnf("metric fetch failed, skipping rule this cycle: %v", err)
			continue
		}

		if event := e.applyReading(rule, snap.Value); event != nil {
			events = append(events, *event)
		}
	}

	for _, event := range events {
		e.deliver(ctx, event)
	}
	return events
}

// applyReading advances one rule's state machine with a fresh value and
// returns the event to deliver, if any.
func (e *Engine) applyReading(rule Rule, value float64) *Event {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.states[rule.ID]
	severity := rule.Severity(value)
	st.lastValue = value

	if severity == SeverityNone {
		if st.severity == SeverityNone {
			return nil
		}
		// Recovery is immediate and is not subject to cooldown.
		prev := st.severity
		st.severity = SeverityNone
		st.since = time.Time{}
		e.log.WithField("rule", rule.ID).Infof("recovered from %s at %.2f", prev, value)

		if !e.recover {
			return nil
		}
		return &Event{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Severity: SeverityNone,
			Value:    value,
			FiredAt:  now,
			Message:  fmt.Sprintf("%s: recovered, current value %.2f", rule.Name, value),
			Recovery: true,
		}
	}

	if st.severity == SeverityNone {
		st.since = now
	}
	st.severity = severity

	// Cooldown is time-based, measured from the last fire of this rule
	// regardless of severity changes in between.
	if !st.lastFiredAt.IsZero() && now.Sub(st.lastFiredAt) < rule.Cooldown {
		return nil
	}
	st.lastFiredAt = now

	return &Event{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Severity: severity,
		Value:    value,
		FiredAt:  now,
		Message: fmt.Sprintf("%s: %.2f %s %.2f", rule.Name, value, rule.comparison(),
			tierThreshold(rule, severity)),
	}
}

// deliver pushes one event to the notifier. Delivery failure is logged and
// swallowed: the event already counts as fired, so a flaky sink cannot cause
// a re-delivery storm.
func (e *Engine) deliver(ctx context.Context, event Event) {
	e.log.WithFields(logrus.Fields{"rule": event.RuleID, "severity": event.Severity}).
		Warn(event.Message)

	if e.notifier == nil {
		return
	}

	var err error
	if event.Recovery {
		err = e.notifier.NotifyRecovery(ctx, event)
	} else {
		err = e.notifier.Notify(ctx, event)
	}
	if err != nil {
		e.log.WithField("rule", event.RuleID).Errorf("notification delivery failed: %v", err)
	}
}

// ActiveAlerts returns a snapshot copy of every rule currently above its
// warning threshold, never the live state table.
func (e *Engine) ActiveAlerts() []ActiveAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var active []ActiveAlert
	for _, rule := range e.rules {
		st := e.states[rule.ID]
		if st.severity == SeverityNone {
			continue
		}
		active = append(active, ActiveAlert{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Severity: st.severity,
			Value:    st.lastValue,
			Since:    st.since,
		})
	}
	return active
}

// Rules returns the configured rule set.
func (e *Engine) Rules() []Rule {
	return e.rules
}

func tierThreshold(rule Rule, severity Severity) float64 {
	if severity == SeverityCritical {
		return rule.Critical
	}
	return rule.Warning
}
