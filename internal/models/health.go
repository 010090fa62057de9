package models

import "time"

// HealthTier is the computed availability grade of a connector.
type HealthTier string

const (
	TierHealthy  HealthTier = "healthy"
	TierDegraded HealthTier = "degraded"
	TierDown     HealthTier = "down"
	TierUnknown  HealthTier = "unknown"
)

// HealthStatus holds per-connector outcome counters. The tier is recomputed
// deterministically from the counters after every recorded outcome.
type HealthStatus struct {
	Connector           string     `json:"connector"`
	Tier                HealthTier `json:"tier"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalCount          int64      `json:"total_count"`
	SuccessCount        int64      `json:"success_count"`
	FailureCount        int64      `json:"failure_count"`
	AvgLatencyMs        float64    `json:"avg_latency_ms"`
	LastSuccess         time.Time  `json:"last_success,omitzero"`
	LastFailure         time.Time  `json:"last_failure,omitzero"`
	LastChecked         time.Time  `json:"last_checked,omitzero"`
	LastError           string     `json:"last_error,omitempty"`
}
