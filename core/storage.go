package core

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage stores binary objects, eg. letter attachments.
type ObjectStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get returns ErrObjectNotFound when the key does not exist. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// DownloadURL returns a temporary direct download URL, or "" when objects must be streamed.
	DownloadURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
}
