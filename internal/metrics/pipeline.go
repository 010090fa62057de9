package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineCollector exposes Prometheus metrics for the intake and approval
// pipeline.
type PipelineCollector struct {
	itemsIngested     *prometheus.CounterVec
	duplicatesDropped prometheus.Counter
	requestsCreated   *prometheus.CounterVec
	decisions         *prometheus.CounterVec
	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
}

// NewPipelineCollector constructs pipeline counters and registers them with
// the given registry.
func NewPipelineCollector(registry *prometheus.Registry) (*PipelineCollector, error) {
	itemsIngested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adjutant",
		Subsystem: "intake",
		Name:      "items_ingested_total",
		Help:      "Action items accepted into the intake queue.",
	}, []string{"source", "priority"})

	duplicatesDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "adjutant",
		Subsystem: "intake",
		Name:      "duplicates_dropped_total",
		Help:      "Action items dropped by duplicate suppression.",
	})

	requestsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adjutant",
		Subsystem: "approval",
		Name:      "requests_created_total",
		Help:      "Approval requests staged, by risk level.",
	}, []string{"risk_level", "auto_approved"})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adjutant",
		Subsystem: "approval",
		Name:      "decisions_total",
		Help:      "Approval decisions recorded, by outcome.",
	}, []string{"outcome"})

	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adjutant",
		Subsystem: "execution",
		Name:      "attempts_total",
		Help:      "Connector execution attempts, by connector and result.",
	}, []string{"connector", "result"})

	executionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "adjutant",
		Subsystem: "execution",
		Name:      "duration_seconds",
		Help:      "Latency distribution for connector executions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"connector"})

	collectors := []prometheus.Collector{
		itemsIngested,
		duplicatesDropped,
		requestsCreated,
		decisions,
		executions,
		executionDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &PipelineCollector{
		itemsIngested:     itemsIngested,
		duplicatesDropped: duplicatesDropped,
		requestsCreated:   requestsCreated,
		decisions:         decisions,
		executions:        executions,
		executionDuration: executionDuration,
	}, nil
}

// ItemIngested records an accepted action item.
func (c *PipelineCollector) ItemIngested(source, priority string) {
	c.itemsIngested.WithLabelValues(source, priority).Inc()
}

// DuplicateDropped records a suppressed duplicate.
func (c *PipelineCollector) DuplicateDropped() {
	c.duplicatesDropped.Inc()
}

// RequestCreated records a staged approval request.
func (c *PipelineCollector) RequestCreated(riskLevel string, autoApproved bool) {
	auto := "false"
	if autoApproved {
		auto = "true"
	}
	c.requestsCreated.WithLabelValues(riskLevel, auto).Inc()
}

// Decision records an approval decision outcome (approved, rejected, expired).
func (c *PipelineCollector) Decision(outcome string) {
	c.decisions.WithLabelValues(outcome).Inc()
}

// Execution records a connector invocation attempt.
func (c *PipelineCollector) Execution(connector, result string, durationSeconds float64) {
	c.executions.WithLabelValues(connector, result).Inc()
	c.executionDuration.WithLabelValues(connector).Observe(durationSeconds)
}
