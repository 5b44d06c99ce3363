package birch

import (
	"github.com/ValentinKolb/sKV/lib/db"
	dbtesting "github.com/ValentinKolb/sKV/lib/db/testing"
	"testing"
	"time"
)

func factory(dir string) (db.KVDB[string, string], error) {
	opts := DefaultOptions()
	opts.StorageDirection = dir
	opts.SegmentMaxBytes = 64 << 10
	opts.CacheDurationSeconds = 0.2
	opts.JanitorInterval = 10 * time.Millisecond
	return NewBirchDB[string, string](opts)
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "BirchDB", factory)
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "BirchDB", factory)
}
