package watch

import (
	"context"
	"sync"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// MemoryWatcher reports items queued by test or development code. Each item
// is reported exactly once.
type MemoryWatcher struct {
	name string

	mu      sync.Mutex
	pending []models.ActionItem
	failErr error
}

// NewMemoryWatcher creates an empty in-memory watcher.
func NewMemoryWatcher(name string) *MemoryWatcher {
	return &MemoryWatcher{name: name}
}

// Name returns the watcher's name.
func (w *MemoryWatcher) Name() string { return w.name }

// Add queues items for the next poll.
func (w *MemoryWatcher) Add(items ...models.ActionItem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, items...)
}

// Fail makes subsequent polls return the given error until reset with nil.
func (w *MemoryWatcher) Fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failErr = err
}

// Poll drains the queued items.
func (w *MemoryWatcher) Poll(ctx context.Context) ([]models.ActionItem, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failErr != nil {
		return nil, w.failErr
	}
	items := w.pending
	w.pending = nil
	return items, nil
}
