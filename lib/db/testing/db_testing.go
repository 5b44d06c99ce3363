package testing

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/sKV/lib/db"
)

// DBFactory opens a KVDB implementation storing its data in dir.
// Opening the same dir again must see the data written before.
type DBFactory func(dir string) (db.KVDB[string, string], error)

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Update&Get", func(t *testing.T) {
			testUpdateGet(t, open(t, factory, t.TempDir()))
		})

		t.Run("LastWriteWins", func(t *testing.T) {
			testLastWriteWins(t, open(t, factory, t.TempDir()))
		})

		t.Run("MissingKey", func(t *testing.T) {
			testMissingKey(t, open(t, factory, t.TempDir()))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, open(t, factory, t.TempDir()))
		})

		t.Run("ManyKeys", func(t *testing.T) {
			testManyKeys(t, open(t, factory, t.TempDir()))
		})

		t.Run("Persistence", func(t *testing.T) {
			testPersistence(t, factory)
		})

		t.Run("ConcurrentDisjointKeys", func(t *testing.T) {
			testConcurrentDisjointKeys(t, open(t, factory, t.TempDir()))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, open(t, factory, t.TempDir()))
		})

		t.Run("Stop", func(t *testing.T) {
			testStop(t, open(t, factory, t.TempDir()))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates a database or fails the test
func open(t testing.TB, factory DBFactory, dir string) db.KVDB[string, string] {
	t.Helper()
	database, err := factory(dir)
	if err != nil {
		t.Fatalf("Failed to open database in %s: %v", dir, err)
	}
	return database
}

// stop stops the database and reports errors
func stop(t testing.TB, database db.KVDB[string, string]) {
	t.Helper()
	if err := database.Stop(); err != nil {
		t.Errorf("Stop returned an error: %v", err)
	}
}

// expect checks that key holds want
func expect(t testing.TB, database db.KVDB[string, string], key, want string) {
	t.Helper()
	got, err := database.Get(key, "<default>")
	if err != nil {
		t.Errorf("Get(%q) returned an error: %v", key, err)
		return
	}
	if got != want {
		t.Errorf("Get(%q): expected %q, got %q", key, truncate(want), truncate(got))
	}
}

func truncate(s string) string {
	if len(s) > 64 {
		return fmt.Sprintf("%s...(%d bytes)", s[:64], len(s))
	}
	return s
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testUpdateGet(t *testing.T, database db.KVDB[string, string]) {
	defer stop(t, database)

	if err := database.Update("test-key", "test-value1"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	expect(t, database, "test-key", "test-value1")

	// second read is served by whatever layer holds the value now
	expect(t, database, "test-key", "test-value1")

	if err := database.Update("test-key", "test-value2"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	expect(t, database, "test-key", "test-value2")
}

func testLastWriteWins(t *testing.T, database db.KVDB[string, string]) {
	defer stop(t, database)

	for i := 0; i < 100; i++ {
		if err := database.Update("key", fmt.Sprintf("value-%d", i)); err != nil {
			t.Fatalf("Update %d failed: %v", i, err)
		}
	}
	expect(t, database, "key", "value-99")
}

func testMissingKey(t *testing.T, database db.KVDB[string, string]) {
	defer stop(t, database)

	got, err := database.Get("nonexistent-key", "fallback")
	if err != nil {
		t.Errorf("Get on a missing key must not fail, got %v", err)
	}
	if got != "fallback" {
		t.Errorf("Expected the default value, got %q", got)
	}

	if err := database.Update("other", "value"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got, _ := database.Get("nonexistent-key", ""); got != "" {
		t.Errorf("Expected empty default, got %q", got)
	}
}

func testEdgeCases(t *testing.T, database db.KVDB[string, string]) {
	defer stop(t, database)

	cases := map[string]string{
		"":                "value for empty key",
		"empty-value-key": "",
		"newline-key\n":   "line one\nline two\r\n",
		"unicode-ключ-鍵":  "значение 値 🙂",
		"quotes-key\"[],": "[\"not\", \"a\", \"record\"]",
		"control-key\x00": "\x00\x01\x02",
	}
	cases[strings.Repeat("k", 1000)] = "value for large key"

	for key, value := range cases {
		if err := database.Update(key, value); err != nil {
			t.Errorf("Update(%q) failed: %v", truncate(key), err)
		}
	}
	for key, value := range cases {
		expect(t, database, key, value)
	}

	if t.Failed() {
		return
	}

	largeValue := strings.Repeat("0123456789abcdef", 256*1024) // 4 MiB
	if err := database.Update("large-value-key", largeValue); err != nil {
		t.Fatalf("Update of a large value failed: %v", err)
	}
	expect(t, database, "large-value-key", largeValue)
}

func testManyKeys(t *testing.T, database db.KVDB[string, string]) {
	defer stop(t, database)

	prefix := "many-keys-"
	numKeys := 5000

	for i := 0; i < numKeys; i++ {
		if err := database.Update(fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("value-%d", i)); err != nil {
			t.Fatalf("Update %d failed: %v", i, err)
		}
	}

	// read twice: the first pass fills the cache, the second one hits it where it can
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < numKeys; i++ {
			expect(t, database, fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("value-%d", i))
		}
	}

	info := database.GetInfo()
	if info.Keys != numKeys {
		t.Errorf("Expected %d keys in info, got %d", numKeys, info.Keys)
	}
}

func testPersistence(t *testing.T, factory DBFactory) {
	dir := t.TempDir()

	database := open(t, factory, dir)
	for i := 0; i < 500; i++ {
		if err := database.Update(fmt.Sprintf("key-%d", i%100), fmt.Sprintf("value-%d", i)); err != nil {
			t.Fatalf("Update %d failed: %v", i, err)
		}
	}
	stop(t, database)

	reopened := open(t, factory, dir)
	defer stop(t, reopened)

	for i := 400; i < 500; i++ {
		expect(t, reopened, fmt.Sprintf("key-%d", i%100), fmt.Sprintf("value-%d", i))
	}

	// the reopened database keeps accepting writes
	if err := reopened.Update("key-0", "after-reopen"); err != nil {
		t.Fatalf("Update after reopen failed: %v", err)
	}
	expect(t, reopened, "key-0", "after-reopen")
	expect(t, reopened, "key-1", "value-401")
}

func testConcurrentDisjointKeys(t *testing.T, database db.KVDB[string, string]) {
	defer stop(t, database)

	numWorkers := 16
	updatesPerWorker := 300
	keysPerWorker := 10

	var wg sync.WaitGroup
	var errorCount atomic.Int32
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < updatesPerWorker; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", worker, i%keysPerWorker)
				value := fmt.Sprintf("worker-%d-value-%d", worker, i)

				if err := database.Update(key, value); err != nil {
					errorCount.Add(1)
					continue
				}

				// a worker owns its keys, so it must read its own last write
				got, err := database.Get(key, "")
				if err != nil || got != value {
					errorCount.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	if n := errorCount.Load(); n > 0 {
		t.Fatalf("Test had %d errors during parallel operations", n)
	}

	for w := 0; w < numWorkers; w++ {
		for k := 0; k < keysPerWorker; k++ {
			last := updatesPerWorker - keysPerWorker + k
			expect(t, database, fmt.Sprintf("worker-%d-key-%d", w, k), fmt.Sprintf("worker-%d-value-%d", w, last))
		}
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB[string, string]) {
	defer stop(t, database)

	type operation struct {
		update bool
		key    string
		value  string
	}

	numOperations := 10_000
	operations := make([]operation, numOperations)
	written := make(map[string]map[string]bool)

	for i := 0; i < numOperations; i++ {
		var key string
		if i%5 == 0 {
			key = fmt.Sprintf("hot-key-%d", i%50)
		} else {
			key = fmt.Sprintf("key-%d", i)
		}

		op := operation{update: i%10 < 7, key: key}
		if op.update {
			op.value = fmt.Sprintf("value-%d-%s", i, strings.Repeat("x", i%128))
			if written[key] == nil {
				written[key] = make(map[string]bool)
			}
			written[key][op.value] = true
		}
		operations[i] = op
	}

	numWorkers := 8
	opsPerWorker := numOperations / numWorkers

	var wg sync.WaitGroup
	var errorCount atomic.Int32
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			start := workerId * opsPerWorker
			for _, op := range operations[start : start+opsPerWorker] {
				if op.update {
					if err := database.Update(op.key, op.value); err != nil {
						errorCount.Add(1)
					}
					continue
				}

				got, err := database.Get(op.key, "")
				if err != nil || (got != "" && !written[op.key][got]) {
					errorCount.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	if n := errorCount.Load(); n > 0 {
		t.Fatalf("Test had %d errors during parallel operations", n)
	}

	// every key ends with one of the values written for it
	for key, values := range written {
		got, err := database.Get(key, "")
		if err != nil {
			t.Errorf("Get(%q) failed: %v", key, err)
		} else if !values[got] {
			t.Errorf("Get(%q) returned %q which was never written", key, truncate(got))
		}
	}
}

func testStop(t *testing.T, database db.KVDB[string, string]) {
	if err := database.Update("key", "value"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stop(t, database)

	if err := database.Update("key", "other"); !errors.Is(err, db.ErrStopped) {
		t.Errorf("Update after Stop: expected ErrStopped, got %v", err)
	}
	if _, err := database.Get("key", ""); !errors.Is(err, db.ErrStopped) {
		t.Errorf("Get after Stop: expected ErrStopped, got %v", err)
	}

	if err := database.Stop(); err != nil {
		t.Errorf("Second Stop must be a no-op, got %v", err)
	}
}
