package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotExist    = errors.New("object does not exist")
	ErrInvalidName = errors.New("invalid object name")
)

// Attrs describes a stored object.
type Attrs struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Bucket is a flat namespace of objects addressed by name.
type Bucket interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Stat(ctx context.Context, name string) (Attrs, error)
	List(ctx context.Context) ([]Attrs, error)
	Delete(ctx context.Context, name string) error
}
