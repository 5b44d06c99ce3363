// Package db provides a standardized interface for embedded key-value storage engines.
// It defines the generic KVDB interface that hides how an engine lays out data on
// disk and in memory.
//
// The package focuses on:
//   - A small interface for point writes and point reads
//   - An explicit lifecycle (construct once, Stop once)
//   - Standardized metadata and metrics reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all engines satisfy. Keys are any
//     comparable type and values any type the engine can persist. Update writes a
//     value, Get reads the most recent one or returns a caller supplied default,
//     Stop releases background workers and file handles.
//
//   - Implementation Identifiers: The Implementation type names the engine behind a
//     KVDB (currently "birch").
//
//   - Database Information: DatabaseInfo reports size statistics, the implementation
//     and engine specific metadata. WriteMetrics exposes counters and gauges in the
//     Prometheus text format.
//
//   - Errors: sentinel errors for the fatal conditions an engine can hit during
//     construction or rotation, to be tested with errors.Is.
//
// Note on reads:
//   - Get on a key that was never written returns the default and a nil error.
//     Errors from Get always mean an IO or decoding failure.
//
// Note on deletion:
//   - There is no delete operation. Overwritten records become dead space until an
//     engine specific compaction reclaims them.
//
// Implementations can be found in the engines subdirectory.
package db
