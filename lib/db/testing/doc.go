// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A conformance suite for the KVDB contract (last write wins,
//     default values for unknown keys, persistence across reopen, concurrency,
//     behavior after Stop)
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Both work on KVDB[string, string]. The factory receives a fresh directory per
// test; the persistence test calls it twice with the same directory.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(dir string) (db.KVDB[string, string], error) {
//		return NewMyDatabase(dir)
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
