package build

import (
	"context"
	"sync"
)

type queueItem struct {
	path string
	stop bool
}

// Queue is an unbounded FIFO of archive paths with a single consumer.
type Queue struct {
	mu     sync.Mutex
	items  []queueItem
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends path. It never blocks and never rejects.
func (q *Queue) Enqueue(path string) {
	q.push(queueItem{path: path})
}

// Shutdown queues the stop marker. Paths enqueued before it are still
// processed; the worker exits when it reaches the marker.
func (q *Queue) Shutdown() {
	q.push(queueItem{stop: true})
}

func (q *Queue) push(item queueItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pending lists queued paths in order, excluding the in-flight one.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

func (q *Queue) pendingLocked() []string {
	pending := []string{}
	for _, item := range q.items {
		if !item.stop {
			pending = append(pending, item.path)
		}
	}
	return pending
}

// next blocks until an item is available. begin runs under the queue lock so
// a reader never sees a path in neither the pending list nor the current job.
func (q *Queue) next(ctx context.Context, begin func(path string)) (queueItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			if !item.stop && begin != nil {
				begin(item.path)
			}
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return queueItem{}, ctx.Err()
		}
	}
}

// snapshot runs fn with the pending list while holding the queue lock.
func (q *Queue) snapshot(fn func(pending []string)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn(q.pendingLocked())
}
