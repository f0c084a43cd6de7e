// Package health reports process liveness for the /healthz endpoint.
package health

import (
	"runtime"
	"time"
)

// Status represents the health status of the server
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// ServerHealth is the snapshot served by the health endpoint
type ServerHealth struct {
	Status            Status    `json:"status"`
	Uptime            int64     `json:"uptime_seconds"`
	Timestamp         time.Time `json:"timestamp"`
	ActiveConnections int       `json:"active_connections"`
	Goroutines        int       `json:"goroutines"`
	MemoryMB          uint64    `json:"memory_mb"`
}

// Monitor tracks uptime and produces health snapshots
type Monitor struct {
	startTime time.Time
}

// NewMonitor creates a health monitor anchored at the current time
func NewMonitor() *Monitor {
	return &Monitor{startTime: time.Now()}
}

// Snapshot returns the current server health. Degraded means the
// storage layer is unavailable; the hub itself keeps serving.
func (m *Monitor) Snapshot(activeConnections int, storageOK bool) *ServerHealth {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	status := StatusHealthy
	if !storageOK {
		status = StatusDegraded
	}

	return &ServerHealth{
		Status:            status,
		Uptime:            int64(time.Since(m.startTime).Seconds()),
		Timestamp:         time.Now(),
		ActiveConnections: activeConnections,
		Goroutines:        runtime.NumGoroutine(),
		MemoryMB:          stats.Alloc / 1024 / 1024,
	}
}
