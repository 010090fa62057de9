package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/adjutant-ai/adjutant/internal/connectors"
)

// Poller periodically health-checks every registered connector and feeds the
// outcomes into the registry. It is one of the independent pipeline workers;
// it shares nothing with its siblings beyond the registry it owns writes to.
type Poller struct {
	connectors  *connectors.Registry
	registry    *Registry
	logger      *slog.Logger
	interval    time.Duration
	callTimeout time.Duration
}

// NewPoller creates a health poller that wakes every interval.
func NewPoller(conns *connectors.Registry, registry *Registry, logger *slog.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		connectors:  conns,
		registry:    registry,
		logger:      logger,
		interval:    interval,
		callTimeout: 30 * time.Second,
	}
}

// Start runs the poll loop until the context is cancelled. The current
// iteration always finishes before the loop exits.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("starting connector health poller", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.checkAll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("health poller stopping")
			return
		case <-ticker.C:
			p.checkAll(ctx)
		}
	}
}

// checkAll health-checks every connector that is due per ShouldCheck.
func (p *Poller) checkAll(ctx context.Context) {
	for _, name := range p.connectors.Names() {
		if !p.registry.ShouldCheck(name) {
			continue
		}
		conn, ok := p.connectors.Get(name)
		if !ok {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		healthy, latencyMs, err := conn.HealthCheck(callCtx)
		cancel()

		p.registry.RecordOutcome(name, healthy && err == nil, latencyMs, err)

		if err != nil {
			p.logger.Warn("connector health check failed",
				"connector", name,
				"error", err,
			)
		}
	}
}
