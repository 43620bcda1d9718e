// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the result of one probe.
type ComponentHealth struct {
	Status  SystemStatus  `json:"status"`
	Latency time.Duration `json:"latency_ns,omitempty"`
	Detail  string        `json:"detail,omitempty"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
	Wallets      int                        `json:"wallets"`
	LastSweep    *time.Time                 `json:"last_sweep,omitempty"`
	CheckedAt    time.Time                  `json:"checked_at"`
}

// worst returns the more severe of two statuses.
func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
