// Package inbox implements the bounded hand-off queue between the control
// context (producers) and the render context (single consumer).
//
// Philosophy: producers never wait, the render loop never waits.
//
// Design:
//   - Push never blocks: when full, the oldest item is dropped (drop-oldest)
//   - TryPop never blocks: returns false when empty ("pop if available, else skip")
//   - FIFO order for the items that survive
//   - Drop tracking for monitoring (Stats)
package inbox

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 64

// Inbox is a bounded multi-producer / single-consumer FIFO.
//
// Thread-safety:
//   - Push: safe for concurrent calls (control context, any goroutine)
//   - TryPop: safe for concurrent calls, intended for one render goroutine
//   - Len, Stats: safe from any goroutine
type Inbox[T any] struct {
	mu    sync.Mutex // Protects items, head, count
	items []T        // Ring buffer storage (len == capacity)
	head  int        // Index of oldest item
	count int        // Number of queued items

	pushed  uint64 // Atomic: items accepted by Push
	popped  uint64 // Atomic: items handed to the consumer
	dropped uint64 // Atomic: items evicted by drop-oldest
}

// Stats is a snapshot of inbox counters.
type Stats struct {
	Capacity int    // Maximum queued items
	Depth    int    // Items currently queued
	Pushed   uint64 // Lifetime pushes
	Popped   uint64 // Lifetime pops
	Dropped  uint64 // Lifetime evictions (producer outpaced the consumer)
}

// New creates an inbox holding at most capacity items.
func New[T any](capacity int) *Inbox[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Inbox[T]{items: make([]T, capacity)}
}

// Push appends v at the tail.
//
// If the inbox is full the oldest queued item is evicted first and Push
// returns true (one item dropped). Always returns immediately.
func (q *Inbox[T]) Push(v T) (dropped bool) {
	q.mu.Lock()

	capacity := len(q.items)
	if q.count == capacity {
		// Evict oldest (drop-oldest policy)
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % capacity
		q.count--
		dropped = true
		atomic.AddUint64(&q.dropped, 1)
	}

	tail := (q.head + q.count) % capacity
	q.items[tail] = v
	q.count++

	q.mu.Unlock()

	atomic.AddUint64(&q.pushed, 1)
	return dropped
}

// TryPop removes and returns the oldest item, or false if the inbox is empty.
// Never blocks.
func (q *Inbox[T]) TryPop() (T, bool) {
	var zero T

	q.mu.Lock()
	if q.count == 0 {
		q.mu.Unlock()
		return zero, false
	}

	v := q.items[q.head]
	q.items[q.head] = zero // Release reference
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.mu.Unlock()

	atomic.AddUint64(&q.popped, 1)
	return v, true
}

// Len returns the number of queued items.
func (q *Inbox[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns a snapshot of the inbox counters.
func (q *Inbox[T]) Stats() Stats {
	return Stats{
		Capacity: len(q.items),
		Depth:    q.Len(),
		Pushed:   atomic.LoadUint64(&q.pushed),
		Popped:   atomic.LoadUint64(&q.popped),
		Dropped:  atomic.LoadUint64(&q.dropped),
	}
}
