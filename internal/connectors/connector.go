// Package connectors defines the contract every external service wrapper
// implements and the registration surface the domain router consumes. The
// connectors themselves (email send, social posting, accounting, browser
// automation) live outside the core; the core only invokes them through this
// interface and classifies their failures through the shared error taxonomy.
package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// Connector is the interface the core consumes from every service wrapper.
type Connector interface {
	// Name returns the unique identifier for this connector.
	Name() string

	// Invoke performs one operation. Failures must be classified into the
	// shared error-code taxonomy via *ConnectorError so retry and health
	// logic can treat them uniformly.
	Invoke(ctx context.Context, operation string, params map[string]any) (map[string]any, error)

	// HealthCheck verifies the connector can reach its service.
	HealthCheck(ctx context.Context) (healthy bool, latencyMs float64, err error)
}

// Registration binds a connector to the domain/capability pairs it serves.
type Registration struct {
	Connector  Connector
	Domain     models.Domain
	Capability string
	// Order breaks ties within a (domain, capability) list; lower first.
	Order int
}

// Registry holds the configured connectors and the ordered per
// (domain, capability) routing lists.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Connector
	routes map[string][]string // domain|capability -> ordered connector names
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Connector),
		routes: make(map[string][]string),
	}
}

func routeKey(domain models.Domain, capability string) string {
	return fmt.Sprintf("%s|%s", domain, capability)
}

// Register adds a connector and its routing entries. Registering the same
// name twice replaces the connector but keeps existing routes.
func (r *Registry) Register(regs ...Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type entry struct {
		name  string
		order int
	}
	pending := make(map[string][]entry)

	for _, reg := range regs {
		name := reg.Connector.Name()
		r.byName[name] = reg.Connector
		key := routeKey(reg.Domain, reg.Capability)
		pending[key] = append(pending[key], entry{name: name, order: reg.Order})
	}

	for key, entries := range pending {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].order < entries[j].order })
		for _, e := range entries {
			if !contains(r.routes[key], e.name) {
				r.routes[key] = append(r.routes[key], e.name)
			}
		}
	}
}

// Get returns a connector by name.
func (r *Registry) Get(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Configured returns the ordered connector names registered for a
// (domain, capability) pair.
func (r *Registry) Configured(domain models.Domain, capability string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.routes[routeKey(domain, capability)]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Names returns all registered connector names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
