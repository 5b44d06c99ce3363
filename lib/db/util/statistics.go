package util

import (
	"math"
	"sort"
	"sync"
)

// ----------------------------------------------------------------------------
// Distribution statistics
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	Sum          float64 `json:"sum"`
}

// NewStats computes mean, standard deviation and range of the given values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var squared float64
	for _, v := range values {
		squared += (v - mean) * (v - mean)
	}

	return Stats{
		StdDeviation: math.Sqrt(squared / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		Sum:          sum,
	}
}

// DistributionStats describes how evenly bytes are spread over segments.
// Fill is the mean segment size relative to the configured limit.
type DistributionStats struct {
	Stats
	Fill float64 `json:"fill"`
}

// NewDistributionStats computes statistics over segment sizes against a size limit
func NewDistributionStats(sizes []float64, limit float64) DistributionStats {
	stats := NewStats(sizes)

	var fill float64
	if limit > 0 {
		fill = stats.Mean / limit
	}

	return DistributionStats{
		Stats: stats,
		Fill:  fill,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are exponential bucket bounds from 16 B to 64 MiB
var sizeBoundaries = []int{
	16, 64, 256, 1024, 4096,
	16384, 65536, 262144, 1048576,
	4194304, 16777216, 67108864,
}

// SizeHistogram tracks the distribution of record sizes in exponential buckets.
//
// Thread-safe: all methods are safe for concurrent use
type SizeHistogram struct {
	mutex   sync.RWMutex
	buckets []int64 // one bucket per boundary plus one for larger values
	count   int64
	sum     int64
}

// HistogramSnapshot is a point-in-time view of a SizeHistogram
type HistogramSnapshot struct {
	Count   int64 `json:"count"`
	Average int   `json:"average"`
	P50     int   `json:"p50"`
	P99     int   `json:"p99"`
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		buckets: make([]int64, len(sizeBoundaries)+1),
	}
}

// AddSample records one size
func (h *SizeHistogram) AddSample(size int) {
	idx := sort.SearchInts(sizeBoundaries, size)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.buckets[idx]++
	h.count++
	h.sum += int64(size)
}

// Count returns the total number of samples
func (h *SizeHistogram) Count() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// Average returns the mean sample size
func (h *SizeHistogram) Average() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// Percentile estimates the given percentile (0-100) from bucket midpoints
func (h *SizeHistogram) Percentile(percentile int) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.percentile(percentile)
}

func (h *SizeHistogram) percentile(percentile int) int {
	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	var cumulative int64

	for i, count := range h.buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		switch {
		case i == 0:
			return sizeBoundaries[0] / 2
		case i < len(sizeBoundaries):
			return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
		default:
			return sizeBoundaries[len(sizeBoundaries)-1] * 2
		}
	}

	return int(h.sum / h.count)
}

// Snapshot returns count, average and percentile estimates in one read
func (h *SizeHistogram) Snapshot() HistogramSnapshot {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	snap := HistogramSnapshot{Count: h.count}
	if h.count > 0 {
		snap.Average = int(h.sum / h.count)
	}
	snap.P50 = h.percentile(50)
	snap.P99 = h.percentile(99)
	return snap
}
