package feed

import "sync"

// Queue is an unbounded multi-producer/single-consumer update queue.
// Push never blocks; the consumer drains every queued update before
// yielding back to render. Wake delivers at most one pending wake-up
// signal so a bubbletea program can block on it.
type Queue struct {
	mu      sync.Mutex
	pending []Update
	wake    chan struct{}
	closed  bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends an update. Safe for concurrent use; never blocks.
func (q *Queue) Push(u Update) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, u)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued update. Returns nil when empty.
func (q *Queue) Drain() []Update {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Len returns the number of queued updates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wake returns the wake-up channel. It carries one coalesced signal per
// burst of pushes.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// Close discards queued updates and rejects further pushes.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
}
