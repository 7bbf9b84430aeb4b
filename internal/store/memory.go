package store

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps documents in process memory. It is used by tests and by
// commands that never persist.
type Memory struct {
	mu       sync.RWMutex
	sections map[int][]byte
	series   []byte
	log      *string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sections: make(map[int][]byte)}
}

func (m *Memory) Driver() string { return DriverMemory }

func (m *Memory) ListSections(context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.sections))
	for n := range m.sections {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func (m *Memory) LoadSection(_ context.Context, n int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.sections[n]
	if !ok {
		return nil, NotFoundError{Kind: kindSection, N: n}
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) SaveSection(_ context.Context, n int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections[n] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) SaveSections(_ context.Context, docs map[int][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for n, data := range docs {
		m.sections[n] = append([]byte(nil), data...)
	}
	return nil
}

func (m *Memory) DeleteSection(_ context.Context, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sections, n)
	return nil
}

func (m *Memory) LoadSeries(context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.series == nil {
		return nil, NotFoundError{Kind: kindSeries}
	}
	return append([]byte(nil), m.series...), nil
}

func (m *Memory) SaveSeries(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series = append([]byte(nil), data...)
	return nil
}

func (m *Memory) LoadExistingLog(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.log == nil {
		return "", NotFoundError{Kind: kindLog}
	}
	return *m.log, nil
}

func (m *Memory) SaveExistingLog(_ context.Context, log string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = &log
	return nil
}

func (m *Memory) Close() error { return nil }
