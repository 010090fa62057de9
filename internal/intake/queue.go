package intake

import (
	"container/heap"
	"sync"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// Queue is a priority queue of action items ordered by priority rank, then
// arrival order within a band. Enqueue applies duplicate suppression through
// the tracker.
type Queue struct {
	mu    sync.Mutex
	items itemHeap
	seq   uint64
	dedup *DedupTracker
}

// NewQueue creates a queue using the given dedup tracker.
func NewQueue(dedup *DedupTracker) *Queue {
	return &Queue{dedup: dedup}
}

// Enqueue inserts an item unless it is a duplicate. Returns true when the
// item was accepted.
func (q *Queue) Enqueue(item models.ActionItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.dedup.IsDuplicate(item) {
		return false
	}
	q.dedup.Mark(item)

	q.seq++
	heap.Push(&q.items, queued{
		item: item,
		rank: item.Priority.Rank(),
		seq:  q.seq,
	})
	return true
}

// Dequeue pops the highest-priority item. The second return is false when
// the queue is empty.
func (q *Queue) Dequeue() (models.ActionItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return models.ActionItem{}, false
	}
	return heap.Pop(&q.items).(queued).item, true
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

type queued struct {
	item models.ActionItem
	rank int
	seq  uint64
}

type itemHeap []queued

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(queued)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
