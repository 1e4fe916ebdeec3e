package models

import "time"

// LogLine is one log entry returned by the log backend.
type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level,omitempty"`
	Source    string    `json:"source,omitempty"`
	Message   string    `json:"message"`
}

// LogQueryResult holds the lines matching a log query, ordered
// oldest-to-newest and silently truncated at the requested limit.
type LogQueryResult struct {
	Lines []LogLine `json:"lines"`
}
