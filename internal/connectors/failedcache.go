package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adjutant-ai/adjutant/internal/store"
)

// FailedRequest is an invocation that could not reach its connector, cached
// durably for later replay.
type FailedRequest struct {
	ID         string         `json:"id"`
	Connector  string         `json:"connector"`
	Operation  string         `json:"operation"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Reason     string         `json:"reason"`
	ApprovalID string         `json:"approval_request_id,omitempty"`
	CachedAt   time.Time      `json:"cached_at"`
	Attempts   int            `json:"attempts"`
}

// FailedRequestCache persists unreachable-connector invocations into the
// failed-requests store and replays them when connectors come back.
type FailedRequestCache struct {
	store    store.Store
	registry *Registry
	logger   *slog.Logger
}

// NewFailedRequestCache creates the cache over the shared durable store.
func NewFailedRequestCache(s store.Store, registry *Registry, logger *slog.Logger) *FailedRequestCache {
	return &FailedRequestCache{store: s, registry: registry, logger: logger}
}

// Add caches a failed invocation.
func (c *FailedRequestCache) Add(ctx context.Context, req FailedRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CachedAt.IsZero() {
		req.CachedAt = time.Now().UTC()
	}
	if err := store.PutJSON(ctx, c.store, store.StateFailedRequests, req.ID, req); err != nil {
		return fmt.Errorf("cache failed request: %w", err)
	}
	c.logger.Info("cached failed connector request",
		"connector", req.Connector,
		"operation", req.Operation,
		"reason", req.Reason,
	)
	return nil
}

// Pending returns the cached requests.
func (c *FailedRequestCache) Pending(ctx context.Context) ([]FailedRequest, error) {
	records, err := c.store.List(ctx, store.StateFailedRequests)
	if err != nil {
		return nil, err
	}

	var out []FailedRequest
	for _, rec := range records {
		var req FailedRequest
		if err := store.GetJSON(ctx, c.store, store.StateFailedRequests, rec.ID, &req); err != nil {
			c.logger.Warn("unreadable failed-request record", "id", rec.ID, "error", err)
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// Replay retries each cached request against its connector, but only when the
// connector is registered. Successful replays leave the cache; failed ones
// stay with an incremented attempt count. Returns the number replayed.
func (c *FailedRequestCache) Replay(ctx context.Context) (int, error) {
	pending, err := c.Pending(ctx)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, req := range pending {
		conn, ok := c.registry.Get(req.Connector)
		if !ok {
			continue
		}

		_, err := conn.Invoke(ctx, req.Operation, req.Parameters)
		if err != nil {
			req.Attempts++
			req.Reason = err.Error()
			if putErr := store.PutJSON(ctx, c.store, store.StateFailedRequests, req.ID, req); putErr != nil {
				c.logger.Warn("failed to update cached request", "id", req.ID, "error", putErr)
			}
			continue
		}

		if err := c.store.Delete(ctx, store.StateFailedRequests, req.ID); err != nil {
			return replayed, err
		}
		replayed++
		c.logger.Info("replayed cached connector request",
			"connector", req.Connector,
			"operation", req.Operation,
		)
	}
	return replayed, nil
}
