package birch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/db/engines/birch/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns the queued times in order and repeats the last one
type fakeClock struct {
	mu    sync.Mutex
	times []float64
	hook  func(call int)
	calls int
}

func (c *fakeClock) now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.hook != nil {
		c.hook(c.calls)
	}
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

type warnings struct {
	mu   sync.Mutex
	msgs []string
}

func (w *warnings) warn(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, fmt.Sprintf(format, args...))
}

func testJanitor(cache *internal.Cache[string, int], duration float64, clock *fakeClock, w *warnings) *janitor[string, int] {
	zero := func() float64 { return 0 }
	metrics := newEngineMetrics(engineGauges{
		cacheEntries:  zero,
		indexKeys:     zero,
		segments:      zero,
		ticketBacklog: zero,
	})
	return newJanitor(cache, duration, time.Millisecond, clock.now, w.warn, metrics)
}

func TestJanitorDropsTicketOfAbsentKey(t *testing.T) {
	cache := internal.NewCache[string, int](4)
	j := testJanitor(cache, 1, &fakeClock{times: []float64{100}}, &warnings{})

	assert.Equal(t, ticketAbsent, j.process(internal.Ticket[string]{Stamp: 50, Key: "gone"}))
}

func TestJanitorSkipsOnClockSkew(t *testing.T) {
	cache := internal.NewCache[string, int](4)
	require.True(t, cache.Set("a", 1, 100))

	w := &warnings{}
	j := testJanitor(cache, 1, &fakeClock{times: []float64{50}}, w)

	assert.Equal(t, ticketClockSkew, j.process(internal.Ticket[string]{Stamp: 100, Key: "a"}))
	assert.True(t, cache.Contains("a"), "skew never evicts")
	require.Len(t, w.msgs, 1)
	assert.Contains(t, w.msgs[0], "clock skew")
	assert.Equal(t, uint64(1), j.metrics.clockSkews.Get())
}

func TestJanitorSkipsOnTicketFromTheFuture(t *testing.T) {
	cache := internal.NewCache[string, int](4)
	require.True(t, cache.Set("a", 1, 100))

	w := &warnings{}
	j := testJanitor(cache, 1, &fakeClock{times: []float64{150}}, w)

	assert.Equal(t, ticketClockSkew, j.process(internal.Ticket[string]{Stamp: 200, Key: "a"}))
	assert.True(t, cache.Contains("a"))
	assert.Len(t, w.msgs, 1)
}

func TestJanitorDropsStaleTicket(t *testing.T) {
	cache := internal.NewCache[string, int](4)
	require.True(t, cache.Set("a", 1, 100))
	_, ok := cache.Get("a", 105)
	require.True(t, ok)

	j := testJanitor(cache, 1, &fakeClock{times: []float64{106}}, &warnings{})

	assert.Equal(t, ticketStale, j.process(internal.Ticket[string]{Stamp: 100, Key: "a"}))
	assert.True(t, cache.Contains("a"))
	assert.Equal(t, uint64(1), j.metrics.staleTickets.Get())
}

func TestJanitorToleratesStampJitter(t *testing.T) {
	cache := internal.NewCache[string, int](4)
	require.True(t, cache.Set("a", 1, 100.05))

	j := testJanitor(cache, 1, &fakeClock{times: []float64{200}}, &warnings{})

	assert.Equal(t, ticketEvicted, j.process(internal.Ticket[string]{Stamp: 100, Key: "a"}))
	assert.False(t, cache.Contains("a"))
}

func TestJanitorEvictsExpiredEntry(t *testing.T) {
	cache := internal.NewCache[string, int](4)
	require.True(t, cache.Set("a", 1, 100))

	j := testJanitor(cache, 10, &fakeClock{times: []float64{100, 105, 111}}, &warnings{})

	assert.Equal(t, ticketEvicted, j.process(internal.Ticket[string]{Stamp: 100, Key: "a"}))
	assert.False(t, cache.Contains("a"))
	assert.Equal(t, uint64(1), j.metrics.evictions.Get())
}

func TestJanitorKeepsEntryTouchedDuringWait(t *testing.T) {
	cache := internal.NewCache[string, int](4)
	require.True(t, cache.Set("a", 1, 100))

	clock := &fakeClock{times: []float64{100, 101.5}}
	clock.hook = func(call int) {
		// a Get arrives while the janitor waits for expiry
		if call == 2 {
			_, _ = cache.Get("a", 100.5)
		}
	}
	j := testJanitor(cache, 1, clock, &warnings{})

	assert.Equal(t, ticketRefreshed, j.process(internal.Ticket[string]{Stamp: 100, Key: "a"}))
	assert.True(t, cache.Contains("a"))
}

func TestJanitorBusy(t *testing.T) {
	clock := &fakeClock{times: []float64{0}}

	cache := internal.NewCache[string, int](5)
	j := testJanitor(cache, 1, clock, &warnings{})
	for i := 0; i < 3; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), i, 1)
	}
	assert.False(t, j.busy())
	cache.Set("key-3", 3, 1)
	assert.True(t, j.busy(), "80 percent occupancy starts eviction")

	empty := testJanitor(internal.NewCache[string, int](0), 1, clock, &warnings{})
	assert.False(t, empty.busy())
}

func TestJanitorShutdown(t *testing.T) {
	cache := internal.NewCache[string, int](4)
	j := testJanitor(cache, 1, &fakeClock{times: []float64{0}}, &warnings{})
	j.start()

	done := make(chan struct{})
	go func() {
		j.shutdown()
		j.shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not shut down")
	}
}
