package db

import "errors"

var (
	// ErrNotDirectory is returned when the storage path exists but is not a directory.
	ErrNotDirectory = errors.New("storage path is not a directory")

	// ErrOrdinalCollision is returned when closing a gap in the segment ordinals
	// would overwrite an existing file.
	ErrOrdinalCollision = errors.New("segment ordinal collision")

	// ErrSegmentExists is returned when rotation targets an ordinal whose file already exists.
	ErrSegmentExists = errors.New("segment already exists")

	// ErrKeyEncoding is returned by Update when a key does not decode back to
	// itself from its record, e.g. a struct key with unexported fields.
	ErrKeyEncoding = errors.New("key does not survive record encoding")

	// ErrStopped is returned by operations on a stopped engine.
	ErrStopped = errors.New("database is stopped")
)
