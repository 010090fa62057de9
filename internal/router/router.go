// Package router maps a classified domain and requested capability to a
// concrete connector, consulting connector health before dispatch.
package router

import (
	"fmt"
	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/connectors"
	"github.com/adjutant-ai/adjutant/internal/health"
	"github.com/adjutant-ai/adjutant/internal/models"
)

// Router selects connectors with health-aware fallback.
type Router struct {
	registry *connectors.Registry
	health   *health.Registry
	logger   *slog.Logger
}

// New creates a Router over the given connector and health registries.
func New(registry *connectors.Registry, healthReg *health.Registry, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		health:   healthReg,
		logger:   logger,
	}
}

// Route picks a connector name for (domain, capability). A caller-suggested
// connector wins when it is available. Otherwise the configured list is
// walked in order and the first available connector is returned. When none
// are available the first configured one is returned anyway: execution is
// best-effort rather than blocked indefinitely on a health check, and the
// caller handles the eventual failure. An error is returned only when
// nothing is configured at all.
func (r *Router) Route(domain models.Domain, capability, suggested string) (string, error) {
	if suggested != "" {
		if _, ok := r.registry.Get(suggested); ok && r.health.IsAvailable(suggested) {
			return suggested, nil
		}
		r.logger.Debug("suggested connector unavailable, falling back",
			"connector", suggested,
			"domain", domain,
			"capability", capability,
		)
	}

	configured := r.registry.Configured(domain, capability)
	if len(configured) == 0 {
		return "", fmt.Errorf("no connector configured for domain %q capability %q", domain, capability)
	}

	for _, name := range configured {
		if r.health.IsAvailable(name) {
			return name, nil
		}
	}

	r.logger.Warn("no available connector, degrading to first configured",
		"domain", domain,
		"capability", capability,
		"connector", configured[0],
	)
	return configured[0], nil
}
