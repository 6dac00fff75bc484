package worker

import (
	"sync"

	"github.com/markview/markview/internal/errors"
	"github.com/markview/markview/internal/metrics"
	"github.com/markview/markview/internal/types"
)

// Queue is a set keyed by buffer id: submitting an item whose buffer id is
// already pending replaces that item's payload, so only the newest text per
// buffer is ever rendered.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   map[types.BufferID]types.WorkItem
	stopped bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{items: make(map[types.BufferID]types.WorkItem)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Submit adds or replaces the pending item for item.BufferID and wakes the
// dispatch loop.
func (q *Queue) Submit(item types.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return errors.ErrQueueClosed
	}
	q.items[item.BufferID] = item
	metrics.QueueDepth.Set(float64(len(q.items)))
	q.cond.Signal()
	return nil
}

// waitDrain blocks until at least one item is pending or the queue is
// stopped, then atomically swaps out the whole batch. ok is false when the
// queue has stopped; any still-pending items are discarded.
func (q *Queue) waitDrain() (batch []types.WorkItem, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped {
		return nil, false
	}
	batch = make([]types.WorkItem, 0, len(q.items))
	for _, item := range q.items {
		batch = append(batch, item)
	}
	q.items = make(map[types.BufferID]types.WorkItem)
	metrics.QueueDepth.Set(0)
	return batch, true
}

// Len returns the number of pending items after coalescing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop closes the queue and wakes the dispatch loop.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.cond.Broadcast()
}

func (q *Queue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}
