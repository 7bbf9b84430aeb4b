// Package blob stores series backups in a flat key space: a local
// directory, process memory, or an S3-compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Driver identifies a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// Info describes a stored blob.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Store is the backup sink. Put never replaces an existing key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// List returns the blobs under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// Delete reports false when the key did not exist.
	Delete(ctx context.Context, key string) (bool, error)
	Driver() Driver
}

var (
	// ErrExists is returned by Put when the key is taken.
	ErrExists = errors.New("blob: key already exists")
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("blob: not found")
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	// Root is the directory of the fs driver.
	Root string
	S3   S3Config
}

// Open returns the store named by opts.Driver (default fs).
func Open(ctx context.Context, opts Options) (Store, error) {
	switch Driver(opts.Driver) {
	case "", DriverFilesystem:
		return NewFilesystem(opts.Root)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", opts.Driver)
	}
}
