package store

import "errors"

var (
	// ErrUnavailable indicates the backing store could not be reached.
	// Ingestion treats it as event-scoped: the write is skipped and
	// processing continues with the next event.
	ErrUnavailable = errors.New("store unavailable")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)
