package object

import (
	"context"
	"time"
)

// Content is a fetched blob. It belongs to a single pipeline invocation.
type Content struct {
	Bytes        []byte
	SizeBytes    int64
	ContentType  string
	LastModified time.Time
}

// PutOptions carries the content type and user metadata attached to a write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ContentStore fetches and stores blobs addressed by (container, key).
// Implementations return *errkind.Error values classified as NotFound,
// AccessDenied or Transient.
type ContentStore interface {
	Fetch(ctx context.Context, container, key string) (Content, error)
	Put(ctx context.Context, container, key string, data []byte, opts PutOptions) (string, error)
}
