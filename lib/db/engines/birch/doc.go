// Package birch implements an embedded key-value database (KVDB) on top of an
// append-only log. It provides a complete implementation of the db.KVDB interface
// with a focus on simple, provable consistency between disk, index and cache.
//
// The package focuses on:
//   - Durable writes: every Update is appended to a log segment and handed to the
//     OS before it returns
//   - Fast point reads through an in-memory index of record offsets
//   - A bounded read cache whose entries expire some time after their last touch,
//     without a timer per entry
//
// Key Components:
//
//   - birchImpl: The central database structure implementing db.KVDB. Update and
//     Get run under a single engine-wide mutex, so no caller ever observes an
//     index entry without the matching cache or disk value.
//
//   - SegmentStore (internal): Manages the log files <prefix>.<ordinal>.<suffix>
//     in the storage directory. Ordinals are gapless from zero; gaps left by
//     manual deletion are closed on startup by renaming, and a rename that would
//     overwrite a file aborts construction. Exactly one segment is active at a
//     time. Once the active segment grew past SegmentMaxBytes, the next Update
//     rotates to a new segment, so a segment can exceed the limit by one record.
//
//   - Record (internal): One line per write, the JSON array
//     [timestamp, key, value]. Keys and values must therefore be JSON encodable
//     and decodable into K and V.
//
//   - Index (internal): Maps every key to the segment and start offset of its
//     latest record. Overwritten records stay on disk as dead space.
//
//   - Cache (internal): Maps keys to their value and last touch timestamp. It is
//     admission controlled: while full, new keys are not cached (the write to
//     disk still happens) and residents are preferred. Every cache write and every
//     cache hit enqueues a ticket (timestamp, key) on a lock-free FIFO.
//
//   - Janitor: A background goroutine consuming tickets. It only works while the
//     cache is at least 80% full and otherwise idles for JanitorInterval.
//
// Eviction Protocol (one ticket at a time):
//
//  1. If the key is not cached anymore, drop the ticket.
//  2. If the current time is before the entry's or the ticket's timestamp, warn
//     about clock skew and drop the ticket without evicting.
//  3. If the entry's timestamp differs from the ticket's by more than 0.1s, the
//     entry was touched after the ticket was issued; a newer ticket exists, so
//     drop this one.
//  4. Otherwise sleep until the ticket is older than CacheDurationSeconds.
//  5. Remove the entry only if its timestamp still matches the ticket's.
//
// The janitor never takes the engine mutex. The double timestamp check makes it
// safe against a Get or Update touching the entry at any point of the protocol;
// the price is that an entry may stay somewhat longer than CacheDurationSeconds.
// The expiry wait does not observe Stop, so stopping can take up to
// CacheDurationSeconds while a ticket is in flight.
//
// Persistence:
//
//   - On open, the index is rebuilt by reading every segment in ordinal order.
//     Reading a segment stops at the first line that cannot be decoded (the rest
//     of that segment is skipped with a warning); such lines are not repaired.
//   - There is no fsync. Data handed to the OS survives a process crash, not
//     necessarily a machine crash.
//
// Compaction:
//
//   - The engine never merges or deletes segments. DBOptions.CompactionHook is
//     called every CompactionInterval with the segment layout and the number of
//     live keys, as an extension point for external space reclamation.
//
// Usage Example:
//
//	opts := birch.DefaultOptions()
//	opts.StorageDirection = "data/"
//	database, err := birch.NewBirchDB[string, string](opts)
//	if err != nil {
//		return err
//	}
//	defer database.Stop()
//
//	// Write a value
//	err = database.Update("key", "value")
//
//	// Read it back (the second argument is returned for unknown keys)
//	value, err := database.Get("key", "")
//
// Thread-safety:
//
// All KVDB methods are safe for concurrent use. Update and Get are serialized.
// Values returned by Get may be shared with the cache and must not be modified.
package birch
