// Package blob stores uploaded document bytes. The MinIO backend is used
// when an endpoint is configured; otherwise files live on local disk under
// the data directory.
package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("object not found")

// Store is the object storage abstraction.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
