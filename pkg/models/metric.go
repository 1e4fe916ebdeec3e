// Package models contains the shared data types exchanged between the
// backend clients, the tool registry, and the alert evaluation engine.
// All types here are plain values: once produced they are never mutated.
package models

import "time"

// MetricSnapshot is a single point-in-time metric reading produced by the
// metrics backend. It lives for one poll cycle or one tool invocation and is
// never persisted.
type MetricSnapshot struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// MemoryInfo is a composite memory reading derived from the metrics backend.
type MemoryInfo struct {
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	AvailableGB float64 `json:"available_gb"`
	Percent     float64 `json:"percent"`
}

// DiskUsage is the fill level of a single filesystem.
type DiskUsage struct {
	Device     string  `json:"device"`
	Mountpoint string  `json:"mountpoint"`
	Percent    float64 `json:"percent"`
}

// InterfaceTraffic holds the cumulative byte counters and link state of one
// network interface.
type InterfaceTraffic struct {
	Device        string  `json:"device"`
	ReceivedGB    float64 `json:"received_gb"`
	TransmittedGB float64 `json:"transmitted_gb"`
	Up            bool    `json:"up"`
}

// NetworkStatus aggregates interface traffic, established connections and
// the aggregate packet-error rate into one reading.
type NetworkStatus struct {
	Interfaces     []InterfaceTraffic `json:"interfaces"`
	TCPEstablished int                `json:"tcp_established"`
	ErrorRate      float64            `json:"error_rate"`
}

// ProcessUsage is one entry of a top-processes listing. CPU rankings fill
// CPUPercent; memory rankings fill MemoryGB and MemoryPercent.
type ProcessUsage struct {
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	MemoryGB      float64 `json:"memory_gb,omitempty"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
}
