// Package alerting implements the continuously running alert evaluation
// engine: a fixed-interval loop that compares current metric readings
// against a static rule set with warning and critical tiers, suppresses
// repeat notifications per rule with a time-based cooldown, and pushes
// qualifying events to a notification sink. Delivery is at-least-once and
// best-effort; a failed delivery never rolls back rule state.
package alerting
