package birch

import (
	"github.com/VictoriaMetrics/metrics"
)

// engineMetrics holds the counters of one engine. Each engine owns its own
// metrics.Set so several engines can live in one process.
type engineMetrics struct {
	set *metrics.Set

	updates       *metrics.Counter
	getsHit       *metrics.Counter
	getsMiss      *metrics.Counter
	getsAbsent    *metrics.Counter
	cacheRejected *metrics.Counter
	rotations     *metrics.Counter
	evictions     *metrics.Counter
	staleTickets  *metrics.Counter
	clockSkews    *metrics.Counter
}

// engineGauges are callbacks reading live engine state
type engineGauges struct {
	cacheEntries  func() float64
	indexKeys     func() float64
	segments      func() float64
	ticketBacklog func() float64
}

func newEngineMetrics(gauges engineGauges) *engineMetrics {
	s := metrics.NewSet()

	m := &engineMetrics{
		set:           s,
		updates:       s.NewCounter("skv_updates_total"),
		getsHit:       s.NewCounter(`skv_gets_total{result="hit"}`),
		getsMiss:      s.NewCounter(`skv_gets_total{result="miss"}`),
		getsAbsent:    s.NewCounter(`skv_gets_total{result="absent"}`),
		cacheRejected: s.NewCounter("skv_cache_rejected_total"),
		rotations:     s.NewCounter("skv_segment_rotations_total"),
		evictions:     s.NewCounter("skv_cache_evictions_total"),
		staleTickets:  s.NewCounter("skv_cache_stale_tickets_total"),
		clockSkews:    s.NewCounter("skv_cache_clock_skews_total"),
	}

	s.NewGauge("skv_cache_entries", gauges.cacheEntries)
	s.NewGauge("skv_index_keys", gauges.indexKeys)
	s.NewGauge("skv_segments", gauges.segments)
	s.NewGauge("skv_cache_ticket_backlog", gauges.ticketBacklog)

	return m
}
