package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ExistingLogFile is the name of the existing-log file in the working directory.
const ExistingLogFile = "existing_log.csv"

// FS keeps documents as files in the hidden working directory
// <dir>/.<name>: <name>.ser, <name>.<n> and existing_log.csv.
type FS struct {
	dir  string
	name string
}

// NewFS creates the working directory if needed.
func NewFS(dir, name string) (*FS, error) {
	if name == "" {
		return nil, errors.New("store: fs driver needs a series name")
	}
	hidden := HiddenDir(dir, name)
	if err := os.MkdirAll(hidden, 0o755); err != nil {
		return nil, fmt.Errorf("create working dir: %w", err)
	}
	return &FS{dir: hidden, name: name}, nil
}

// HiddenDir returns the working directory for series name under dir.
func HiddenDir(dir, name string) string {
	return filepath.Join(dir, "."+name)
}

// Dir returns the working directory.
func (f *FS) Dir() string { return f.dir }

func (f *FS) Driver() string { return DriverFS }

func (f *FS) sectionPath(n int) string {
	return filepath.Join(f.dir, f.name+"."+strconv.Itoa(n))
}

func (f *FS) ListSections(context.Context) ([]int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list working dir: %w", err)
	}
	var out []int
	for _, e := range entries {
		name := e.Name()
		i := strings.LastIndexByte(name, '.')
		if e.IsDir() || i < 0 || name[:i] != f.name {
			continue
		}
		if n, err := strconv.Atoi(name[i+1:]); err == nil && n >= 0 {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (f *FS) read(path, kind string, n int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NotFoundError{Kind: kind, N: n}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// write replaces path atomically.
func (f *FS) write(path string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (f *FS) LoadSection(_ context.Context, n int) ([]byte, error) {
	return f.read(f.sectionPath(n), kindSection, n)
}

func (f *FS) SaveSection(_ context.Context, n int, data []byte) error {
	return f.write(f.sectionPath(n), data)
}

func (f *FS) SaveSections(ctx context.Context, docs map[int][]byte) error {
	keys := make([]int, 0, len(docs))
	for n := range docs {
		keys = append(keys, n)
	}
	sort.Ints(keys)
	for _, n := range keys {
		if err := f.SaveSection(ctx, n, docs[n]); err != nil {
			return err
		}
	}
	return nil
}

func (f *FS) DeleteSection(_ context.Context, n int) error {
	err := os.Remove(f.sectionPath(n))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete section %d: %w", n, err)
	}
	return nil
}

func (f *FS) LoadSeries(context.Context) ([]byte, error) {
	return f.read(filepath.Join(f.dir, f.name+".ser"), kindSeries, 0)
}

func (f *FS) SaveSeries(_ context.Context, data []byte) error {
	return f.write(filepath.Join(f.dir, f.name+".ser"), data)
}

func (f *FS) LoadExistingLog(context.Context) (string, error) {
	data, err := f.read(filepath.Join(f.dir, ExistingLogFile), kindLog, 0)
	return string(data), err
}

func (f *FS) SaveExistingLog(_ context.Context, log string) error {
	return f.write(filepath.Join(f.dir, ExistingLogFile), []byte(log))
}

func (f *FS) Close() error { return nil }

// Remove deletes the working directory.
func (f *FS) Remove() error {
	return os.RemoveAll(f.dir)
}
