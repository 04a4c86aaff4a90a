package dispatch

import (
	"sync"
)

// Queue is an unbounded FIFO ring buffer safe for concurrent use.
// Push never blocks; the ring doubles when full.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int // next read
	size   int
	closed bool

	// Stats
	pushed    int64
	delivered int64
	grows     int
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &Queue[T]{ring: make([]T, initialCapacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item. Returns false if the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.size == len(q.ring) {
		q.grow()
	}

	q.ring[(q.head+q.size)%len(q.ring)] = item
	q.size++
	q.pushed++

	q.cond.Signal()
	return true
}

// Pop removes the oldest item, blocking until one is available.
// After Close it returns the remaining items, then zero and false.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.cond.Wait()
	}
	return q.popLocked()
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}

	item := q.ring[q.head]
	q.ring[q.head] = zero // Clear reference for GC
	q.head = (q.head + 1) % len(q.ring)
	q.size--
	q.delivered++
	return item, true
}

// Close stops accepting items and wakes blocked receivers.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Depth     int
	Capacity  int
	Pushed    int64
	Delivered int64
	Grows     int
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Depth:     q.size,
		Capacity:  len(q.ring),
		Pushed:    q.pushed,
		Delivered: q.delivered,
		Grows:     q.grows,
	}
}

// grow doubles the ring, unwrapping items to the front. Must be called with lock held.
func (q *Queue[T]) grow() {
	ring := make([]T, len(q.ring)*2)
	n := copy(ring, q.ring[q.head:])
	copy(ring[n:], q.ring[:q.head])

	q.ring = ring
	q.head = 0
	q.grows++
}
