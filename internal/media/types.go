// Package media materializes message attachments into blob storage and
// records the outcome as an attachment descriptor.
package media

import (
	"context"
	"io"
)

// StorageProvider abstracts the blob backend. Keys are slash-separated
// relative paths chosen by the materializer.
type StorageProvider interface {
	// Put stores the blob under key, creating parent directories as needed.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	// Open returns a reader for the blob under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob under key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
	// AccessPath returns an externally meaningful location for the key,
	// such as an absolute filesystem path or a URL.
	AccessPath(key string) string
}
