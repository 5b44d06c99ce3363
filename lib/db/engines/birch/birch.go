package birch

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/db/engines/birch/internal"
	"github.com/ValentinKolb/sKV/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("birch")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultStorageDirection   = "db/"
	defaultSegmentPrefix      = "storage"
	defaultSegmentSuffix      = "db"
	defaultSegmentMaxBytes    = 8 << 20 // 8 MiB
	defaultCacheCapacity      = 64
	defaultCacheDuration      = 60.0 // seconds
	defaultJanitorInterval    = 2 * time.Second
	defaultCompactionInterval = 60 * time.Second
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// DBOptions configures a birch database during initialization.
// Zero values of the string, size and interval fields fall back to the defaults;
// CacheCapacity and CacheDurationSeconds are taken as given.
type DBOptions struct {
	StorageDirection     string        // Directory holding the segment files (created if missing)
	SegmentPrefix        string        // Segment file name prefix
	SegmentSuffix        string        // Segment file name suffix
	SegmentMaxBytes      int64         // The active segment rotates once it grew past this size
	CacheCapacity        int           // Max number of cached values (0 = no caching)
	CacheDurationSeconds float64       // How long a cached value stays after its last touch
	JanitorInterval      time.Duration // Poll interval of the cache janitor

	// CompactionHook is called every CompactionInterval with the current segment
	// layout. No hook means no compaction goroutine.
	CompactionHook     func(info CompactionInfo)
	CompactionInterval time.Duration

	// WarningHook receives clock skew warnings of the janitor (nil = log them)
	WarningHook func(format string, args ...interface{})

	// Clock is the time source for record and cache timestamps (nil = time.Now)
	Clock func() time.Time
}

// DefaultOptions returns the default birch options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		StorageDirection:     defaultStorageDirection,
		SegmentPrefix:        defaultSegmentPrefix,
		SegmentSuffix:        defaultSegmentSuffix,
		SegmentMaxBytes:      defaultSegmentMaxBytes,
		CacheCapacity:        defaultCacheCapacity,
		CacheDurationSeconds: defaultCacheDuration,
		JanitorInterval:      defaultJanitorInterval,
		CompactionInterval:   defaultCompactionInterval,
	}
}

// normalize validates opts and returns a copy with defaults filled in
func (opts DBOptions) normalize() (DBOptions, error) {
	if opts.CacheCapacity < 0 {
		return opts, fmt.Errorf("cache capacity must not be negative, got %d", opts.CacheCapacity)
	}
	if opts.CacheDurationSeconds < 0 {
		return opts, fmt.Errorf("cache duration must not be negative, got %f", opts.CacheDurationSeconds)
	}

	if opts.StorageDirection == "" {
		opts.StorageDirection = defaultStorageDirection
	}
	if opts.SegmentPrefix == "" {
		opts.SegmentPrefix = defaultSegmentPrefix
	}
	if opts.SegmentSuffix == "" {
		opts.SegmentSuffix = defaultSegmentSuffix
	}
	if opts.SegmentMaxBytes <= 0 {
		opts.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = defaultJanitorInterval
	}
	if opts.CompactionInterval <= 0 {
		opts.CompactionInterval = defaultCompactionInterval
	}
	if opts.WarningHook == nil {
		opts.WarningHook = logger.GetLogger("janitor").Warningf
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return opts, nil
}

// --------------------------------------------------------------------------
// Core birch database structure
// --------------------------------------------------------------------------

// birchImpl is an append-only log database with an in-memory index and a
// time-decayed read cache.
//
// Update and Get are serialized by mu, which keeps index, cache and segments
// consistent with each other. The janitor never takes mu; it only uses the
// cache's own lock.
type birchImpl[K comparable, V any] struct {
	mu      sync.Mutex
	stopped bool

	opts    DBOptions
	store   *internal.SegmentStore
	index   *internal.Index[K]
	cache   *internal.Cache[K, V]
	janitor *janitor[K, V]
	compact *compactor

	// introspection
	metrics      *engineMetrics
	segmentCount atomic.Int64
	recordSizes  *util.SizeHistogram
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewBirchDB opens (or creates) a birch database with the specified options (optional).
// Segment ordinal gaps are repaired, the index is rebuilt from the segments and
// the cache janitor is started.
//
// Construction fails if the storage path is not a directory (db.ErrNotDirectory)
// or if a gap repair would overwrite a file (db.ErrOrdinalCollision).
func NewBirchDB[K comparable, V any](opts *DBOptions) (db.KVDB[K, V], error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	if err := prepareDirectory(o.StorageDirection); err != nil {
		return nil, err
	}

	store, err := internal.OpenSegmentStore(o.StorageDirection, o.SegmentPrefix, o.SegmentSuffix, o.SegmentMaxBytes)
	if err != nil {
		return nil, err
	}

	birch := &birchImpl[K, V]{
		opts:        o,
		store:       store,
		index:       internal.NewIndex[K](),
		cache:       internal.NewCache[K, V](o.CacheCapacity),
		recordSizes: util.NewSizeHistogram(),
	}
	birch.segmentCount.Store(int64(store.Len()))
	birch.metrics = newEngineMetrics(birch.gauges())

	if err := birch.recoverIndex(); err != nil {
		_ = store.Close()
		return nil, err
	}

	birch.janitor = newJanitor(birch.cache, o.CacheDurationSeconds, o.JanitorInterval, birch.now, o.WarningHook, birch.metrics)
	birch.janitor.start()

	if o.CompactionHook != nil {
		birch.compact = newCompactor(o.CompactionInterval, birch.compactionInfo, o.CompactionHook)
		birch.compact.start()
	}

	Logger.Infof("opened %s with %d segments and %d keys", o.StorageDirection, store.Len(), birch.index.Len())
	return birch, nil
}

// prepareDirectory creates dir if needed and fails if the path is not a directory
func prepareDirectory(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%w: %s", db.ErrNotDirectory, dir)
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage directory: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("stat storage directory: %w", err)
	}
}

// recoverIndex replays all segments in ordinal order, the last record of a key wins
func (birch *birchImpl[K, V]) recoverIndex() error {
	return birch.store.Scan(func(seg *internal.Segment, offset int64, line []byte) error {
		record, err := internal.DecodeRecord[K, V](line)
		if err != nil {
			return err
		}
		birch.index.Set(record.Key, internal.Location{Segment: seg, Offset: offset})
		birch.recordSizes.AddSample(len(line))
		return nil
	})
}

// now returns the current time as float seconds since epoch
func (birch *birchImpl[K, V]) now() float64 {
	return float64(birch.opts.Clock().UnixNano()) / 1e9
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Update appends a record for key, caches the value and points the index at the new record.
// The active segment is rotated first if it grew past SegmentMaxBytes.
// The cached value is the one decoded from the record, so cache hits and disk
// reads agree. A key that does not decode to itself fails with db.ErrKeyEncoding.
//
// Thread-safety: This method is thread-safe; it is serialized with Get.
func (birch *birchImpl[K, V]) Update(key K, value V) error {
	birch.mu.Lock()
	defer birch.mu.Unlock()

	if birch.stopped {
		return db.ErrStopped
	}

	now := birch.now()
	line, err := internal.EncodeRecord(internal.Record[K, V]{Timestamp: now, Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	// cache what a disk read would return, and refuse keys that come back different
	stored, err := internal.DecodeRecord[K, V](line)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if stored.Key != key {
		return fmt.Errorf("%w: %v is stored as %v", db.ErrKeyEncoding, key, stored.Key)
	}

	if birch.store.NeedsRotation() {
		if err := birch.store.Rotate(); err != nil {
			return err
		}
		birch.segmentCount.Store(int64(birch.store.Len()))
		birch.metrics.rotations.Inc()
	}

	seg, offset, err := birch.store.Append(line)
	if err != nil {
		return err
	}

	if !birch.cache.Set(key, stored.Value, now) {
		birch.metrics.cacheRejected.Inc()
	}
	birch.index.Set(key, internal.Location{Segment: seg, Offset: offset})

	birch.recordSizes.AddSample(len(line))
	birch.metrics.updates.Inc()
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get returns the latest value of key or def if the key was never written.
// Cached values are returned directly (and their residency extended); otherwise
// the record is read from its segment and the value is cached.
//
// Returned values are shared with the cache and must not be modified.
//
// Thread-safety: This method is thread-safe; it is serialized with Update.
func (birch *birchImpl[K, V]) Get(key K, def V) (V, error) {
	birch.mu.Lock()
	defer birch.mu.Unlock()

	if birch.stopped {
		return def, db.ErrStopped
	}

	loc, ok := birch.index.Get(key)
	if !ok {
		birch.metrics.getsAbsent.Inc()
		return def, nil
	}

	now := birch.now()
	if value, hit := birch.cache.Get(key, now); hit {
		birch.metrics.getsHit.Inc()
		return value, nil
	}

	line, err := birch.store.ReadAt(loc.Segment, loc.Offset)
	if err != nil {
		return def, err
	}
	record, err := internal.DecodeRecord[K, V](line)
	if err != nil {
		return def, fmt.Errorf("segment %d offset %d: %w", loc.Segment.Ordinal(), loc.Offset, err)
	}
	if record.Key != key {
		util.RaiseInvariant("birch", "index_mismatch", "index entry of %v points at a record of %v", key, record.Key)
		return def, fmt.Errorf("index entry of %v points at a foreign record", key)
	}

	if !birch.cache.Set(key, record.Value, now) {
		birch.metrics.cacheRejected.Inc()
	}
	birch.metrics.getsMiss.Inc()
	return record.Value, nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Stop stops the janitor and compaction loop, waits for them and closes all segments.
// A ticket the janitor is currently waiting on is finished first, so Stop can
// take up to CacheDurationSeconds. Calling Stop again is a no-op.
func (birch *birchImpl[K, V]) Stop() error {
	birch.mu.Lock()
	if birch.stopped {
		birch.mu.Unlock()
		return nil
	}
	birch.stopped = true
	birch.mu.Unlock()

	// the compactor snapshots under mu, so mu must be free while joining
	birch.janitor.shutdown()
	if birch.compact != nil {
		birch.compact.shutdown()
	}

	birch.mu.Lock()
	defer birch.mu.Unlock()

	birch.cache.Close()
	if err := birch.store.Close(); err != nil {
		return fmt.Errorf("close segments: %w", err)
	}

	Logger.Infof("stopped %s", birch.opts.StorageDirection)
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Metadata
// --------------------------------------------------------------------------

// birchInfo is the engine specific part of db.DatabaseInfo
type birchInfo struct {
	StorageDirection string                 `json:"storage_direction"`
	SegmentCount     int                    `json:"segment_count"`
	ActiveSegment    int                    `json:"active_segment"`
	SegmentSizes     util.DistributionStats `json:"segment_sizes"`
	RecordSizes      util.HistogramSnapshot `json:"record_sizes"`
	CacheEntries     int                    `json:"cache_entries"`
	CacheCapacity    int                    `json:"cache_capacity"`
	TicketBacklog    int                    `json:"ticket_backlog"`
	Stopped          bool                   `json:"stopped"`
}

// GetInfo returns statistics about the database
func (birch *birchImpl[K, V]) GetInfo() db.DatabaseInfo {
	birch.mu.Lock()
	defer birch.mu.Unlock()

	segments := birch.store.Segments()
	sizes := make([]float64, len(segments))
	var total int64
	for i, seg := range segments {
		sizes[i] = float64(seg.Size())
		total += seg.Size()
	}

	active := -1
	if seg := birch.store.Active(); seg != nil {
		active = seg.Ordinal()
	}

	return db.DatabaseInfo{
		SizeBytes: total,
		DbType:    db.ImplBirch,
		Keys:      birch.index.Len(),
		Metadata: &birchInfo{
			StorageDirection: birch.opts.StorageDirection,
			SegmentCount:     len(segments),
			ActiveSegment:    active,
			SegmentSizes:     util.NewDistributionStats(sizes, float64(birch.opts.SegmentMaxBytes)),
			RecordSizes:      birch.recordSizes.Snapshot(),
			CacheEntries:     birch.cache.Len(),
			CacheCapacity:    birch.cache.Capacity(),
			TicketBacklog:    birch.cache.Backlog(),
			Stopped:          birch.stopped,
		},
	}
}

// WriteMetrics writes the engine metrics and the process wide invariant
// violation counters in Prometheus text format
func (birch *birchImpl[K, V]) WriteMetrics(w io.Writer) {
	birch.metrics.set.WritePrometheus(w)
	if err := util.WriteInvariantMetrics(w); err != nil {
		Logger.Warningf("failed to write invariant metrics: %v", err)
	}
}

// gauges exposes live engine state to the metric set
func (birch *birchImpl[K, V]) gauges() engineGauges {
	return engineGauges{
		cacheEntries:  func() float64 { return float64(birch.cache.Len()) },
		indexKeys:     func() float64 { return float64(birch.index.Len()) },
		segments:      func() float64 { return float64(birch.segmentCount.Load()) },
		ticketBacklog: func() float64 { return float64(birch.cache.Backlog()) },
	}
}
