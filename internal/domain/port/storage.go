package port

import "context"

// BlobStore moves named objects in and out of the content bucket. Failures
// are logged by the implementation and reported as false; callers decide
// whether a false is fatal.
type BlobStore interface {
	Put(ctx context.Context, localPath string, key string) bool
	Get(ctx context.Context, key string, localPath string) bool
	Delete(ctx context.Context, key string) bool
}
