package testing

import (
	"fmt"
	"github.com/ValentinKolb/sKV/lib/db"
	"strings"
	"sync/atomic"
	"testing"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementation
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Update", func(b *testing.B) {
			benchmarkUpdate(b, open(b, factory, b.TempDir()))
		})

		b.Run("UpdateExisting", func(b *testing.B) {
			benchmarkUpdateExisting(b, open(b, factory, b.TempDir()))
		})

		b.Run("UpdateLargeValue", func(b *testing.B) {
			benchmarkUpdateLargeValue(b, open(b, factory, b.TempDir()))
		})

		b.Run("Get(hot)", func(b *testing.B) {
			benchmarkGet(b, open(b, factory, b.TempDir()), 16)
		})

		b.Run("Get(cold)", func(b *testing.B) {
			benchmarkGet(b, open(b, factory, b.TempDir()), 10_000)
		})

		b.Run("Get(absent)", func(b *testing.B) {
			benchmarkGetAbsent(b, open(b, factory, b.TempDir()))
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, open(b, factory, b.TempDir()))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Update with a new key every time
func benchmarkUpdate(b *testing.B, database db.KVDB[string, string]) {
	b.Cleanup(func() {
		_ = database.Stop()
	})

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			_ = database.Update(fmt.Sprintf("test-key-%d", i), fmt.Sprintf("test-value-%d", i))
		}
	})
}

// Benchmark for Update on a small set of existing keys
func benchmarkUpdateExisting(b *testing.B, database db.KVDB[string, string]) {
	b.Cleanup(func() {
		_ = database.Stop()
	})

	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		_ = database.Update(fmt.Sprintf("test-key-%d", i), fmt.Sprintf("test-value-%d", i))
	}

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			_ = database.Update(fmt.Sprintf("test-key-%d", i%int64(numKeys)), fmt.Sprintf("test-value-%d", i))
		}
	})
}

// Benchmark for Update with 64 KiB values
func benchmarkUpdateLargeValue(b *testing.B, database db.KVDB[string, string]) {
	b.Cleanup(func() {
		_ = database.Stop()
	})

	largeValue := strings.Repeat("v", 64*1024)
	var counter atomic.Int64

	b.SetBytes(int64(len(largeValue)))
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = database.Update(fmt.Sprintf("test-key-%d", counter.Add(1)), largeValue)
		}
	})
}

// Benchmark for Get over numKeys keys. Few keys are served by the cache,
// many keys mostly hit the segments.
func benchmarkGet(b *testing.B, database db.KVDB[string, string], numKeys int) {
	b.Cleanup(func() {
		_ = database.Stop()
	})

	for i := 0; i < numKeys; i++ {
		_ = database.Update(fmt.Sprintf("test-key-%d", i), fmt.Sprintf("test-value-%d", i))
	}

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			_, _ = database.Get(fmt.Sprintf("test-key-%d", i%int64(numKeys)), "")
		}
	})
}

// Benchmark for Get on a key that was never written
func benchmarkGetAbsent(b *testing.B, database db.KVDB[string, string]) {
	b.Cleanup(func() {
		_ = database.Stop()
	})

	const key = "test-key"

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = database.Get(key, "")
		}
	})
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, database db.KVDB[string, string]) {
	b.Cleanup(func() {
		_ = database.Stop()
	})

	// Number of pre-populated keys
	numKeys := 10_000
	if b.N < numKeys {
		numKeys = b.N
	}

	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		_ = database.Update(keys[i], fmt.Sprintf("test-value-%d", i))
	}

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localCounter := 0

		for pb.Next() {
			idx := int(counter.Add(1)-1) % numKeys

			// For every 10th operation, use a completely new key
			var key string
			if localCounter%10 == 0 {
				key = fmt.Sprintf("new-key-%d-%d", idx, localCounter)
			} else {
				key = keys[idx]
			}

			// 3 of 4 operations are reads
			if localCounter%4 == 0 {
				_ = database.Update(key, fmt.Sprintf("mixed-value-%d", localCounter))
			} else {
				_, _ = database.Get(key, "")
			}

			localCounter++
		}
	})
}
