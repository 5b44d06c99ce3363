package internal

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Index (key -> location of the most recent record)
// --------------------------------------------------------------------------

// Location points at the first byte of a record inside a segment
type Location struct {
	Segment *Segment
	Offset  int64
}

// Index maps every written key to the location of its latest record.
// It only grows; overwriting a key replaces its location.
//
// Thread-safety: all methods are safe for concurrent use.
type Index[K comparable] struct {
	entries *xsync.MapOf[K, Location]
}

// NewIndex creates an empty index
func NewIndex[K comparable]() *Index[K] {
	return &Index[K]{
		entries: xsync.NewMapOf[K, Location](),
	}
}

// Get returns the location of key
func (idx *Index[K]) Get(key K) (Location, bool) {
	return idx.entries.Load(key)
}

// Set stores loc as the location of key
func (idx *Index[K]) Set(key K, loc Location) {
	idx.entries.Store(key, loc)
}

// Len returns the number of indexed keys
func (idx *Index[K]) Len() int {
	return idx.entries.Size()
}

// Range calls fn for every key until fn returns false
func (idx *Index[K]) Range(fn func(key K, loc Location) bool) {
	idx.entries.Range(fn)
}
