package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adjutant-ai/adjutant/internal/classifier"
	"github.com/adjutant-ai/adjutant/internal/metrics"
	"github.com/adjutant-ai/adjutant/internal/models"
	"github.com/adjutant-ai/adjutant/internal/store"
)

// Handler receives each dequeued item together with its classified domain.
// The composition root wires this to the approval request manager.
type Handler interface {
	HandleItem(ctx context.Context, item models.ActionItem, domain models.Domain) error
}

// ProcessorConfig holds the intake worker's tunables.
type ProcessorConfig struct {
	PollInterval time.Duration
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.PipelineCollector
}

// Processor is the intake worker: it scans the needs-action store, enqueues
// new items with duplicate suppression, and drains the queue each cycle.
type Processor struct {
	store      store.Store
	queue      *Queue
	classifier classifier.Classifier
	handler    Handler
	logger     *slog.Logger
	config     ProcessorConfig
	lastCheck  time.Time
}

// NewProcessor creates the intake worker.
func NewProcessor(s store.Store, queue *Queue, cls classifier.Classifier, handler Handler, logger *slog.Logger, config ProcessorConfig) *Processor {
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	return &Processor{
		store:      s,
		queue:      queue,
		classifier: cls,
		handler:    handler,
		logger:     logger,
		config:     config,
	}
}

// Ingest validates and stores a detected item, then enqueues it. Duplicates
// are dropped silently; the watcher that produced them does not care.
func (p *Processor) Ingest(ctx context.Context, item models.ActionItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = models.ItemStatusDetected
	}
	if item.Priority == "" {
		item.Priority = models.PriorityUnknown
	}

	if !p.queue.Enqueue(item) {
		p.logger.Debug("duplicate item dropped",
			"source", item.Source,
			"id", item.ID,
		)
		if p.config.Metrics != nil {
			p.config.Metrics.DuplicateDropped()
		}
		return nil
	}
	if p.config.Metrics != nil {
		p.config.Metrics.ItemIngested(string(item.Source), string(item.Priority))
	}

	return store.PutJSON(ctx, p.store, store.StateNeedsAction, item.DedupKey(), item)
}

// Start runs the intake loop until the context is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("starting intake processor", "poll_interval", p.config.PollInterval)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("intake processor stopping")
			return
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

// runCycle enqueues any store records not yet seen, then drains the queue.
func (p *Processor) runCycle(ctx context.Context) {
	p.scanStore(ctx)
	p.drain(ctx)
	p.lastCheck = time.Now()
}

// scanStore picks up items written directly into needs-action by watchers or
// recovered after a restart. The dedup tracker suppresses re-enqueues.
func (p *Processor) scanStore(ctx context.Context) {
	records, err := p.store.List(ctx, store.StateNeedsAction)
	if err != nil {
		p.logger.Error("failed to scan needs-action store", "error", err)
		return
	}

	for _, rec := range records {
		var item models.ActionItem
		if err := store.GetJSON(ctx, p.store, store.StateNeedsAction, rec.ID, &item); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			p.logger.Warn("unreadable needs-action record", "id", rec.ID, "error", err)
			continue
		}
		p.queue.Enqueue(item)
	}
}

// drain processes queued items synchronously, highest priority first.
func (p *Processor) drain(ctx context.Context) {
	for {
		item, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			return
		}
		p.process(ctx, item)
	}
}

func (p *Processor) process(ctx context.Context, item models.ActionItem) {
	// The backing record may have been removed by a human or another worker
	// between enqueue and processing; that is routine, not an error.
	if _, err := p.store.Get(ctx, store.StateNeedsAction, item.DedupKey()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("skipping item whose backing record disappeared",
				"source", item.Source,
				"id", item.ID,
			)
			return
		}
		p.logger.Error("failed to read backing record", "id", item.ID, "error", err)
		return
	}

	domain, err := p.classifier.Classify(ctx, item)
	if err != nil {
		p.logger.Error("classification failed, using unknown domain",
			"id", item.ID,
			"error", err,
		)
		domain = models.DomainUnknown
	}

	if err := p.handler.HandleItem(ctx, item, domain); err != nil {
		p.logger.Error("item processing failed",
			"source", item.Source,
			"id", item.ID,
			"error", err,
		)
		return
	}

	// Hand-off succeeded: the item advances to the plans store.
	err = p.store.Move(ctx, item.DedupKey(), store.StateNeedsAction, store.StatePlans, func(data []byte) ([]byte, error) {
		return setItemStatus(data, models.ItemStatusStaged)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		p.logger.Error("failed to advance item to plans", "id", item.ID, "error", err)
	}

	p.logger.Info("item processed",
		"source", item.Source,
		"id", item.ID,
		"priority", item.Priority,
		"domain", domain,
	)
}
