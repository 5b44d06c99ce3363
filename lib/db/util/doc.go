// Package util provides supporting components for the database engines in lib/db.
//
// The package contains:
//   - lockfreempsc: a lock-free Multi-Producer Single-Consumer queue, used as the
//     cache's eviction-ticket FIFO
//   - statistics: a SizeHistogram for record sizes and distribution statistics for
//     segment sizes, both reported through db.DatabaseInfo
//   - invariant: RaiseInvariant, which counts and logs violated engine invariants
package util
