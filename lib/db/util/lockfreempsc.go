// Package util provides a lock-free Multi-Producer Single-Consumer (MPSC) queue implementation.
//
// Features and Guarantees:
//
//   - Lock-Free: producers only use atomic operations, even under high contention
//   - Unbounded Size: the queue grows as needed, limited only by available memory
//   - Small Footprint: two pointers of overhead per item
//   - Thread-Safe writes: any number of goroutines may Push() concurrently
//   - Single Consumer: exactly one goroutine may call Pop(); it blocks on Notify() when idle
//   - FIFO per producer: items pushed by one goroutine (or pushed under an external lock)
//     are popped in push order. Concurrent pushes are ordered by which CAS wins.
//
// Unlike a channel, the consumer is free to stop reading at any time: nothing is
// forwarded by a background goroutine, so an abandoned queue holds no goroutine.
package util

import (
	"runtime"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is a lock-free multi-producer single-consumer queue.
// It is a linked list of nodes with a sentinel head; producers append at the
// tail with CAS, the consumer advances the head.
type LockFreeMPSC[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	size   atomic.Int64
	closed atomic.Bool

	// notify holds at most one pending wakeup for the consumer
	notify chan struct{}
}

// NewLockFreeMPSC creates a new lock-free multi-producer single-consumer queue
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	sentinel := &node[T]{}

	q := &LockFreeMPSC[T]{
		notify: make(chan struct{}, 1),
	}

	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	return q
}

// Push appends an item to the queue.
// Returns true if the item was added, or false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	// count before linking so Len never underestimates what Pop can see
	q.size.Add(1)

	var backoff uint8 = 0
	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()

		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// may fail if another producer already advanced the tail, which is fine
				q.tail.CompareAndSwap(tailNode, newNode)
				q.wake()
				return true
			}
		} else {
			// help a producer that linked its node but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		/*
		 Exponential backoff under contention:
		  - few retries: spin via Gosched to avoid scheduler round trips
		  - many retries: keep yielding so the winning producer can finish
		*/
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the consumer without blocking
func (q *LockFreeMPSC[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest item. The boolean is false if the queue is empty.
//
// Thread-safety: Only a single goroutine may call Pop.
func (q *LockFreeMPSC[T]) Pop() (T, bool) {
	var zero T

	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return zero, false
	}

	value := next.value

	// next becomes the new sentinel; drop its value for the gc
	q.head.Store(next)
	next.value = zero
	q.size.Add(-1)

	return value, true
}

// Notify returns a channel that receives a value after a Push.
// Wakeups are coalesced, so the consumer must drain with Pop until it reports empty.
func (q *LockFreeMPSC[T]) Notify() <-chan struct{} {
	return q.notify
}

// Close closes the queue, preventing further writes.
// Items already in the queue can still be popped.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed returns true if the queue is closed.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of queued items. It may briefly count an item
// whose Push has not finished linking it.
func (q *LockFreeMPSC[T]) Len() int {
	return int(q.size.Load())
}
