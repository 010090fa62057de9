// Package watch runs the detection side of the pipeline: watchers observe an
// external surface (mailbox, chat, filesystem) and report action items, which
// the runner feeds into intake.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// Watcher observes one external surface and reports new action items. Poll
// must be safe to call repeatedly; the dedup layer downstream absorbs
// re-reported items.
type Watcher interface {
	Name() string
	Poll(ctx context.Context) ([]models.ActionItem, error)
}

// Ingestor accepts detected items. The composition root wires this to the
// intake processor.
type Ingestor interface {
	Ingest(ctx context.Context, item models.ActionItem) error
}

// RunnerConfig holds the watch loop's tunables.
type RunnerConfig struct {
	PollInterval time.Duration
}

// Runner polls every registered watcher on a shared interval. One watcher's
// failure never affects the others.
type Runner struct {
	watchers []Watcher
	ingestor Ingestor
	logger   *slog.Logger
	config   RunnerConfig
}

// NewRunner creates a watch runner.
func NewRunner(watchers []Watcher, ingestor Ingestor, logger *slog.Logger, config RunnerConfig) *Runner {
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	return &Runner{
		watchers: watchers,
		ingestor: ingestor,
		logger:   logger,
		config:   config,
	}
}

// Start runs the watch loop until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("starting watch runner",
		"watchers", len(r.watchers),
		"poll_interval", r.config.PollInterval,
	)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("watch runner stopping")
			return
		case <-ticker.C:
			r.RunCycle(ctx)
		}
	}
}

// RunCycle polls every watcher once and ingests what they report.
func (r *Runner) RunCycle(ctx context.Context) {
	for _, w := range r.watchers {
		if ctx.Err() != nil {
			return
		}

		items, err := w.Poll(ctx)
		if err != nil {
			r.logger.Error("watcher poll failed",
				"watcher", w.Name(),
				"error", err,
			)
			continue
		}

		for _, item := range items {
			if item.WatcherType == "" {
				item.WatcherType = w.Name()
			}
			if err := r.ingestor.Ingest(ctx, item); err != nil {
				r.logger.Error("failed to ingest detected item",
					"watcher", w.Name(),
					"item_id", item.ID,
					"error", err,
				)
			}
		}
	}
}
