// Package storage keeps donation photos in a flat namespace of generated
// names, either in a local directory or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrInvalidName is returned for names that could escape the store's
// namespace.
var ErrInvalidName = errors.New("invalid object name")

// Object describes one stored blob.
type Object struct {
	Name    string
	ModTime time.Time
}

// Store persists attachment blobs. Delete of a missing name is not an error.
type Store interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (int64, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Object, error)
}
