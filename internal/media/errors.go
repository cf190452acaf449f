package media

import "errors"

var (
	// ErrNotFound indicates the requested blob does not exist.
	ErrNotFound = errors.New("media: blob not found")
	// ErrInvalidKey indicates a storage key that escapes the provider root.
	ErrInvalidKey = errors.New("media: invalid storage key")
)
