// Package store persists the raw documents of an unpacked series: one JSON
// document per section, the series document and the existing log.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Driver names accepted by Open.
const (
	DriverFS       = "fs"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// NotFoundError is returned when a document does not exist.
type NotFoundError struct {
	Kind string
	N    int
}

func (e NotFoundError) Error() string {
	if e.Kind == kindSection {
		return fmt.Sprintf("store: section %d not found", e.N)
	}
	return fmt.Sprintf("store: %s not found", e.Kind)
}

// ErrUnknownDriver is returned by Open for unsupported driver names.
var ErrUnknownDriver = errors.New("store: unknown driver")

const (
	kindSection = "section"
	kindSeries  = "series"
	kindLog     = "log"
)

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// Store holds the documents of one series.
type Store interface {
	Driver() string
	ListSections(ctx context.Context) ([]int, error)
	LoadSection(ctx context.Context, n int) ([]byte, error)
	SaveSection(ctx context.Context, n int, data []byte) error
	// SaveSections writes several sections at once. Drivers with
	// transactions write all of them or none.
	SaveSections(ctx context.Context, docs map[int][]byte) error
	DeleteSection(ctx context.Context, n int) error
	LoadSeries(ctx context.Context) ([]byte, error)
	SaveSeries(ctx context.Context, data []byte) error
	LoadExistingLog(ctx context.Context) (string, error)
	SaveExistingLog(ctx context.Context, log string) error
	Close() error
}

// Options configures Open.
type Options struct {
	// Name is the series name; the fs driver uses it for file names.
	Name string
	// Dir is the directory holding the hidden working directory (fs) or
	// the database file (sqlite).
	Dir string
	// DSN is the postgres connection string.
	DSN string
}

// Open returns a store for driver.
func Open(ctx context.Context, driver string, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverFS:
		return NewFS(opts.Dir, opts.Name)
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(ctx, sqlitePath(opts), opts.Name)
	case DriverPostgres:
		return NewPostgres(ctx, opts.DSN, opts.Name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
