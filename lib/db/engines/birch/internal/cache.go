package internal

import (
	"github.com/ValentinKolb/sKV/lib/db/util"
	"math"
	"sync"
)

// --------------------------------------------------------------------------
// Tickets (deferred eviction events)
// --------------------------------------------------------------------------

// Ticket is enqueued on every cache write. It records when the key was touched;
// by the time it is processed the entry may be gone or carry a newer stamp.
type Ticket[K comparable] struct {
	Stamp float64
	Key   K
}

// --------------------------------------------------------------------------
// Cache
// --------------------------------------------------------------------------

type cacheEntry[V any] struct {
	stamp float64 // last touch in seconds since epoch
	value V
}

// Cache is a capacity bounded map from key to value. It never evicts on its own:
// new keys are refused while it is full, and expiry is driven by an external
// consumer of the ticket queue.
//
// Thread-safety: all methods are safe for concurrent use, except PopTicket
// which must only be called by a single consumer.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[K]cacheEntry[V]
	tickets  *util.LockFreeMPSC[Ticket[K]]
}

// NewCache creates a cache holding at most capacity entries
func NewCache[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacity,
		entries:  make(map[K]cacheEntry[V]),
		tickets:  util.NewLockFreeMPSC[Ticket[K]](),
	}
}

// Set stores value for key stamped with now and enqueues a ticket.
// A new key is refused (returns false) while the cache is at capacity; existing
// keys are always refreshed.
func (c *Cache[K, V]) Set(key K, value V, now float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		return false
	}

	c.entries[key] = cacheEntry[V]{stamp: now, value: value}
	c.tickets.Push(Ticket[K]{Stamp: now, Key: key})
	return true
}

// Get returns the cached value. A hit restamps the entry with now and enqueues a ticket.
func (c *Cache[K, V]) Get(key K, now float64) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	entry.stamp = now
	c.entries[key] = entry
	c.tickets.Push(Ticket[K]{Stamp: now, Key: key})
	return entry.value, true
}

// Contains reports whether key is cached without touching it
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Stamp returns the last touch time of key
func (c *Cache[K, V]) Stamp(key K) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry.stamp, ok
}

// RemoveIfStamp removes key only if its stamp is within eps of stamp,
// i.e. it was not touched since the ticket carrying stamp was issued.
func (c *Cache[K, V]) RemoveIfStamp(key K, stamp, eps float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || math.Abs(entry.stamp-stamp) > eps {
		return false
	}
	delete(c.entries, key)
	return true
}

// Len returns the number of cached entries
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// PopTicket dequeues the oldest ticket
func (c *Cache[K, V]) PopTicket() (Ticket[K], bool) {
	return c.tickets.Pop()
}

// TicketNotify fires after new tickets were enqueued
func (c *Cache[K, V]) TicketNotify() <-chan struct{} {
	return c.tickets.Notify()
}

// Backlog returns the number of unprocessed tickets
func (c *Cache[K, V]) Backlog() int {
	return c.tickets.Len()
}

// Close stops accepting tickets. Cached values stay readable.
func (c *Cache[K, V]) Close() {
	c.tickets.Close()
}
