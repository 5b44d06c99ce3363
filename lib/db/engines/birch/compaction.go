package birch

import (
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Compaction hook
// --------------------------------------------------------------------------

// SegmentInfo describes one segment at the time of a compaction tick
type SegmentInfo struct {
	Ordinal   int    `json:"ordinal"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Active    bool   `json:"active"`
}

// CompactionInfo is passed to DBOptions.CompactionHook. LiveKeys together with
// the segment sizes lets a hook estimate how much of the log is dead space.
type CompactionInfo struct {
	Time     time.Time     `json:"time"`
	Segments []SegmentInfo `json:"segments"`
	LiveKeys int           `json:"live_keys"`
}

// compactor calls a hook periodically. The engine does not merge segments itself.
type compactor struct {
	interval time.Duration
	snapshot func() (CompactionInfo, bool)
	hook     func(info CompactionInfo)

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newCompactor(interval time.Duration, snapshot func() (CompactionInfo, bool), hook func(CompactionInfo)) *compactor {
	return &compactor{
		interval: interval,
		snapshot: snapshot,
		hook:     hook,
		stop:     make(chan struct{}),
	}
}

func (c *compactor) start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				if info, ok := c.snapshot(); ok {
					c.hook(info)
				}
			}
		}
	}()
}

func (c *compactor) shutdown() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// compactionInfo snapshots the segment layout under the engine lock.
// It reports false once the engine is stopped.
func (birch *birchImpl[K, V]) compactionInfo() (CompactionInfo, bool) {
	birch.mu.Lock()
	defer birch.mu.Unlock()

	if birch.stopped {
		return CompactionInfo{}, false
	}

	active := birch.store.Active()
	segments := birch.store.Segments()

	info := CompactionInfo{
		Time:     birch.opts.Clock(),
		Segments: make([]SegmentInfo, len(segments)),
		LiveKeys: birch.index.Len(),
	}
	for i, seg := range segments {
		info.Segments[i] = SegmentInfo{
			Ordinal:   seg.Ordinal(),
			Path:      seg.Path(),
			SizeBytes: seg.Size(),
			Active:    seg == active,
		}
	}
	return info, true
}
