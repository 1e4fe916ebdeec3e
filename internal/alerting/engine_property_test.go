package alerting

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// genRule draws a valid above-direction rule with ordered thresholds.
func genRule(t *rapid.T) Rule {
	warning := rapid.Float64Range(10, 80).Draw(t, "warning")
	critical := rapid.Float64Range(warning, 99).Draw(t, "critical")
	cooldownMinutes := rapid.IntRange(1, 30).Draw(t, "cooldownMinutes")

	return Rule{
		ID:        "prop-rule",
		Name:      "Property Rule",
		Query:     "prop",
		Warning:   warning,
		Critical:  critical,
		Direction: DirectionAbove,
		Cooldown:  time.Duration(cooldownMinutes) * time.Minute,
	}
}

// TestEngineCooldownLaw checks that however the readings move, two
// non-recovery events for the same rule are never closer than the rule's
// cooldown.
func TestEngineCooldownLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rule := genRule(t)

		metrics := &fakeMetrics{values: map[string]float64{"prop": 0}}
		clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		e := NewEngine(metrics, nil, []Rule{rule}, Options{
			NotifyOnRecovery: rapid.Bool().Draw(t, "notifyOnRecovery"),
			Clock:            clock.Now,
		})

		cycles := rapid.IntRange(1, 60).Draw(t, "cycles")
		var fireTimes []time.Time

		for i := 0; i < cycles; i++ {
			metrics.values["prop"] = rapid.Float64Range(0, 120).Draw(t, "reading")

			events := e.EvaluateCycle(context.Background())
			if len(events) > 1 {
				t.Fatalf("cycle produced %d events for one rule", len(events))
			}
			for _, ev := range events {
				if !ev.Recovery {
					fireTimes = append(fireTimes, ev.FiredAt)
				}
			}

			advance := rapid.IntRange(0, int(rule.Cooldown/time.Second)*2).Draw(t, "advanceSeconds")
			clock.Advance(time.Duration(advance) * time.Second)
		}

		for i := 1; i < len(fireTimes); i++ {
			if gap := fireTimes[i].Sub(fireTimes[i-1]); gap < rule.Cooldown {
				t.Fatalf("fires %d and %d only %s apart, cooldown %s", i-1, i, gap, rule.Cooldown)
			}
		}
	})
}

// TestEngineStateMatchesLastReading checks that after any reading sequence,
// the active-alert table agrees with the classification of the most recent
// reading.
func TestEngineStateMatchesLastReading(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rule := genRule(t)

		metrics := &fakeMetrics{values: map[string]float64{"prop": 0}}
		clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		e := NewEngine(metrics, nil, []Rule{rule}, Options{Clock: clock.Now})

		cycles := rapid.IntRange(1, 40).Draw(t, "cycles")
		var last float64
		for i := 0; i < cycles; i++ {
			last = rapid.Float64Range(0, 120).Draw(t, "reading")
			metrics.values["prop"] = last
			e.EvaluateCycle(context.Background())
			clock.Advance(time.Minute)
		}

		active := e.ActiveAlerts()
		want := rule.Severity(last)

		if want == SeverityNone {
			if len(active) != 0 {
				t.Fatalf("reading %.2f is below thresholds but alerts remain: %+v", last, active)
			}
			return
		}
		if len(active) != 1 {
			t.Fatalf("reading %.2f crosses thresholds but no alert is active", last)
		}
		if active[0].Severity != want {
			t.Fatalf("severity %s does not match classification %s of reading %.2f",
				active[0].Severity, want, last)
		}
		if active[0].Value != last {
			t.Fatalf("active value %.2f is not the last reading %.2f", active[0].Value, last)
		}
	})
}

// TestEngineRecoveryOnlyAfterFiring checks that recovery events appear only
// when the rule was actually in a firing condition.
func TestEngineRecoveryOnlyAfterFiring(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rule := genRule(t)

		metrics := &fakeMetrics{values: map[string]float64{"prop": 0}}
		clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		e := NewEngine(metrics, nil, []Rule{rule}, Options{
			NotifyOnRecovery: true,
			Clock:            clock.Now,
		})

		firing := false
		cycles := rapid.IntRange(1, 40).Draw(t, "cycles")
		for i := 0; i < cycles; i++ {
			reading := rapid.Float64Range(0, 120).Draw(t, "reading")
			metrics.values["prop"] = reading

			events := e.EvaluateCycle(context.Background())
			for _, ev := range events {
				if ev.Recovery && !firing {
					t.Fatalf("recovery without a preceding firing state at reading %.2f", reading)
				}
			}

			firing = rule.Severity(reading) != SeverityNone
			clock.Advance(30 * time.Second)
		}
	})
}
