package connectors

import (
	"context"
	"log/slog"
	"time"
)

// DryRun is the built-in connector: it records what would have been done and
// reports success. Deployments replace it with real integrations; until then
// the whole pipeline, approvals and audit included, runs end to end.
type DryRun struct {
	name   string
	logger *slog.Logger
}

// NewDryRun creates a dry-run connector under the given name.
func NewDryRun(name string, logger *slog.Logger) *DryRun {
	return &DryRun{name: name, logger: logger}
}

// Name returns the connector's name.
func (d *DryRun) Name() string { return d.name }

// Invoke logs the operation and echoes the parameters back.
func (d *DryRun) Invoke(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	d.logger.Info("dry-run execution",
		"connector", d.name,
		"operation", operation,
	)
	return map[string]any{
		"dry_run":   true,
		"operation": operation,
		"executed":  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// HealthCheck always reports healthy with negligible latency.
func (d *DryRun) HealthCheck(ctx context.Context) (bool, float64, error) {
	return true, 0, nil
}
