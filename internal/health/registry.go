// Package health tracks per-connector outcome counters and computes the
// availability tier the domain router consults before dispatch.
package health

import (
	"sync"
	"time"

	"github.com/adjutant-ai/adjutant/internal/models"
)

const (
	// emaAlpha weights the newest latency sample in the moving average.
	emaAlpha = 0.3

	healthyThreshold  = 0.95
	degradedThreshold = 0.80
	maxConsecutive    = 5

	defaultCheckInterval = 5 * time.Minute
)

// Registry is the single source of truth for connector health. It is the only
// component allowed to downgrade a connector's tier; updates happen solely
// through RecordOutcome.
type Registry struct {
	mu            sync.RWMutex
	statuses      map[string]*models.HealthStatus
	checkInterval time.Duration
	now           func() time.Time
}

// NewRegistry creates a registry with the given health-check interval.
// A non-positive interval falls back to the 5 minute default.
func NewRegistry(checkInterval time.Duration) *Registry {
	if checkInterval <= 0 {
		checkInterval = defaultCheckInterval
	}
	return &Registry{
		statuses:      make(map[string]*models.HealthStatus),
		checkInterval: checkInterval,
		now:           time.Now,
	}
}

// RecordOutcome records a success or failure for a connector and recomputes
// its tier deterministically from the counters.
func (r *Registry) RecordOutcome(connector string, success bool, latencyMs float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.statuses[connector]
	if st == nil {
		st = &models.HealthStatus{Connector: connector, Tier: models.TierUnknown}
		r.statuses[connector] = st
	}

	now := r.now()
	st.TotalCount++
	st.LastChecked = now

	if success {
		st.SuccessCount++
		st.ConsecutiveFailures = 0
		st.LastSuccess = now
		st.LastError = ""
		if st.AvgLatencyMs == 0 {
			st.AvgLatencyMs = latencyMs
		} else {
			st.AvgLatencyMs = emaAlpha*latencyMs + (1-emaAlpha)*st.AvgLatencyMs
		}
	} else {
		st.FailureCount++
		st.ConsecutiveFailures++
		st.LastFailure = now
		if err != nil {
			st.LastError = err.Error()
		}
	}

	st.Tier = computeTier(st)
}

// computeTier derives the tier from the counters: 5+ consecutive failures
// force down; otherwise success rate >=95% is healthy, >=80% degraded,
// anything below is down.
func computeTier(st *models.HealthStatus) models.HealthTier {
	if st.ConsecutiveFailures >= maxConsecutive {
		return models.TierDown
	}
	if st.TotalCount == 0 {
		return models.TierUnknown
	}

	rate := float64(st.SuccessCount) / float64(st.TotalCount)
	switch {
	case rate >= healthyThreshold:
		return models.TierHealthy
	case rate >= degradedThreshold:
		return models.TierDegraded
	default:
		return models.TierDown
	}
}

// Status returns a copy of the connector's health status. Unregistered
// connectors report tier unknown.
func (r *Registry) Status(connector string) models.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if st, ok := r.statuses[connector]; ok {
		return *st
	}
	return models.HealthStatus{Connector: connector, Tier: models.TierUnknown}
}

// Snapshot returns the status of every tracked connector.
func (r *Registry) Snapshot() []models.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.HealthStatus, 0, len(r.statuses))
	for _, st := range r.statuses {
		out = append(out, *st)
	}
	return out
}

// IsAvailable reports whether a connector may receive traffic: healthy or
// degraded, and also unknown (no data yet is not grounds for refusal).
func (r *Registry) IsAvailable(connector string) bool {
	switch r.Status(connector).Tier {
	case models.TierHealthy, models.TierDegraded, models.TierUnknown:
		return true
	default:
		return false
	}
}

// ShouldCheck reports whether the connector is due for a health check: more
// than the configured check interval has elapsed since its last update.
func (r *Registry) ShouldCheck(connector string) bool {
	st := r.Status(connector)
	if st.LastChecked.IsZero() {
		return true
	}
	return r.now().Sub(st.LastChecked) > r.checkInterval
}
