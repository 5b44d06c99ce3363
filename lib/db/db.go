package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplBirch Implementation = "birch"
)

type DatabaseInfo struct {
	SizeBytes int64          `json:"size_bytes"`
	DbType    Implementation `json:"db_type"`
	Keys      int            `json:"keys"`
	Metadata  interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for embedded key-value engines.
// Keys must be comparable, values can be of any type the engine is able to persist.
// All methods may be called concurrently from any number of goroutines.
type KVDB[K comparable, V any] interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Update persists value as the most recent value of key.
	// When Update returns without error the record is written to the OS and
	// visible to every following Get.
	Update(key K, value V) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns the most recent value of key, or def if the key was never written.
	// An unknown key is not an error.
	Get(key K, def V) (value V, err error)

	// --------------------------------------------------------------------------
	// Introspection
	// --------------------------------------------------------------------------

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// WriteMetrics writes the engine metrics in Prometheus text format to w.
	WriteMetrics(w io.Writer)

	// --------------------------------------------------------------------------
	// Lifecycle
	// --------------------------------------------------------------------------

	// Stop stops all background work and releases file handles.
	// Further calls to Update and Get return ErrStopped.
	Stop() (err error)
}
