package birch

import (
	"github.com/ValentinKolb/sKV/lib/db/engines/birch/internal"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// a ticket whose stamp differs from the entry's stamp by more than this
	// was issued before the entry's last touch
	staleTicketEpsilon = 0.1

	// the janitor only evicts while the cache is at least this full (percent)
	janitorOccupancyPercent = 80
)

// ticketOutcome is what processing a single ticket did
type ticketOutcome int

const (
	ticketAbsent    ticketOutcome = iota // key no longer cached
	ticketClockSkew                      // time went backwards, decision skipped
	ticketStale                          // entry touched after the ticket was issued
	ticketRefreshed                      // entry touched while waiting for expiry
	ticketEvicted                        // entry removed
)

// --------------------------------------------------------------------------
// Janitor
// --------------------------------------------------------------------------

// janitor consumes the cache's eviction tickets in a background goroutine.
// It never touches the engine lock. Every cache access it makes is a point
// operation, and correctness under concurrent Get/Update comes from comparing
// the ticket stamp with the entry stamp twice.
type janitor[K comparable, V any] struct {
	cache    *internal.Cache[K, V]
	duration float64       // cache residency in seconds
	interval time.Duration // idle poll interval
	now      func() float64
	warn     func(format string, args ...interface{})
	metrics  *engineMetrics

	stop    chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup
}

func newJanitor[K comparable, V any](
	cache *internal.Cache[K, V],
	duration float64,
	interval time.Duration,
	now func() float64,
	warn func(format string, args ...interface{}),
	metrics *engineMetrics,
) *janitor[K, V] {
	return &janitor[K, V]{
		cache:    cache,
		duration: duration,
		interval: interval,
		now:      now,
		warn:     warn,
		metrics:  metrics,
		stop:     make(chan struct{}),
	}
}

// start runs the janitor loop in a new goroutine
func (j *janitor[K, V]) start() {
	j.wg.Add(1)
	go j.run()
}

// shutdown signals the loop and waits for it to return.
// A ticket in its expiry wait is finished before the loop sees the signal.
func (j *janitor[K, V]) shutdown() {
	if j.stopped.CompareAndSwap(false, true) {
		close(j.stop)
	}
	j.wg.Wait()
}

// run is the main janitor loop
// WARNING: this method should never be called directly! use start() and shutdown()
func (j *janitor[K, V]) run() {
	defer j.wg.Done()

	for !j.stopped.Load() {
		if !j.busy() {
			j.sleep(nil, j.interval)
			continue
		}

		ticket, ok := j.cache.PopTicket()
		if !ok {
			j.sleep(j.cache.TicketNotify(), j.interval)
			continue
		}

		j.process(ticket)
	}
}

// busy reports whether the cache is full enough to evict
func (j *janitor[K, V]) busy() bool {
	capacity := j.cache.Capacity()
	return capacity > 0 && j.cache.Len()*100 >= capacity*janitorOccupancyPercent
}

// sleep waits for d, a wakeup on notify (nil = none) or the stop signal
func (j *janitor[K, V]) sleep(notify <-chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-j.stop:
	case <-notify:
	case <-timer.C:
	}
}

// process runs the eviction protocol for one ticket
func (j *janitor[K, V]) process(ticket internal.Ticket[K]) ticketOutcome {
	stamp, ok := j.cache.Stamp(ticket.Key)
	if !ok {
		return ticketAbsent
	}

	// never evict when the clock is ambiguous
	now := j.now()
	if now < stamp || now < ticket.Stamp {
		j.warn("clock skew while evicting %v: now=%.6f entry=%.6f ticket=%.6f", ticket.Key, now, stamp, ticket.Stamp)
		j.metrics.clockSkews.Inc()
		return ticketClockSkew
	}

	if math.Abs(stamp-ticket.Stamp) > staleTicketEpsilon {
		j.metrics.staleTickets.Inc()
		return ticketStale
	}

	j.waitUntil(ticket.Stamp + j.duration)

	if !j.cache.RemoveIfStamp(ticket.Key, ticket.Stamp, staleTicketEpsilon) {
		j.metrics.staleTickets.Inc()
		return ticketRefreshed
	}

	j.metrics.evictions.Inc()
	return ticketEvicted
}

// waitUntil polls until now is past deadline (seconds since epoch).
// It ignores the stop signal.
func (j *janitor[K, V]) waitUntil(deadline float64) {
	for {
		remaining := deadline - j.now()
		if remaining < 0 {
			return
		}

		d := time.Duration(remaining * float64(time.Second))
		if d > j.interval {
			d = j.interval
		}
		if d <= 0 {
			d = time.Millisecond
		}
		time.Sleep(d)
	}
}
