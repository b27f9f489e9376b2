package stream

import "sync"

// Queue buffers pending light updates between flushes.
//
// An update for a light already in the queue replaces the queued value without moving it,
// so a drained snapshot lists each light once, in first-seen order, with its latest value.
// Enqueue and Drain may be called from different goroutines.
type Queue struct {
	mu    sync.Mutex
	index map[int]int // light id -> position in items
	items []LightUpdate
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{index: make(map[int]int)}
}

// Enqueue adds u, or replaces the queued update for the same light in place.
func (q *Queue) Enqueue(u LightUpdate) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if pos, ok := q.index[u.LightID]; ok {
		q.items[pos] = u
		return
	}
	q.index[u.LightID] = len(q.items)
	q.items = append(q.items, u)
}

// Drain returns the queued updates in insertion order and empties the queue.
// Updates enqueued after Drain returns belong to the next snapshot.
func (q *Queue) Drain() []LightUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := q.items
	q.items = nil
	q.index = make(map[int]int, len(snapshot))
	return snapshot
}

// Len returns the number of distinct lights waiting to be flushed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
