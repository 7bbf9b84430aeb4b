package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLite stores documents in a single SQLite database file.
type SQLite struct {
	sqlStore
	path string
}

func sqlitePath(opts Options) string {
	name := opts.Name
	if name == "" {
		name = "series"
	}
	return filepath.Join(opts.Dir, "."+name+".db")
}

// NewSQLite opens (or creates) the database at path. The series name scopes
// the rows, so one file can hold several series.
func NewSQLite(ctx context.Context, path, series string) (*SQLite, error) {
	if path == "" {
		path = "series.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer keeps SaveSections transactions serialized
	db.SetMaxOpenConns(1)
	if series == "" {
		series = strings.TrimSuffix(filepath.Base(path), ".db")
	}
	s := &SQLite{sqlStore: sqlStore{db: db, driver: DriverSQLite, series: series}, path: path}
	if err := s.ensureTable(ctx, "BLOB"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file.
func (s *SQLite) Path() string { return s.path }
