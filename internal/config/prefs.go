package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

const prefsFile = "preferences.json"

// Prefs stores user preferences as a key-value map backed by a JSON file.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]any
	path   string
}

// DefaultPrefsPath returns ~/.config/recon-tracer/preferences.json (or the
// platform equivalent).
func DefaultPrefsPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "recon-tracer", prefsFile)
}

// LoadPrefs reads the preferences at path. A missing file yields empty
// preferences; a malformed one is an error.
func LoadPrefs(path string) (*Prefs, error) {
	p := &Prefs{values: make(map[string]any), path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &p.values); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return p, nil
}

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// Path returns the backing file.
func (p *Prefs) Path() string { return p.path }

// Keys returns the stored keys in order.
func (p *Prefs) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.values))
	for k := range p.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// string returns a string preference.
func (p *Prefs) string(key string) (*string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("config: preference %q must be a string", key)
	}
	return &s, nil
}

// int returns an integer preference.
func (p *Prefs) int(key string) (*int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	if !ok {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return nil, fmt.Errorf("config: preference %q must be an integer", key)
	}
	n := int(f)
	return &n, nil
}

// bool returns a boolean preference.
func (p *Prefs) bool(key string) (*bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	if !ok {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("config: preference %q must be a boolean", key)
	}
	return &b, nil
}

// Set stores a preference from its text form. Known integer and boolean
// keys are converted; everything else is kept as a string.
func (p *Prefs) Set(key, value string) error {
	var v any = value
	switch keyKinds[key] {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		v = float64(n)
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		v = b
	case kindUnknown:
		return fmt.Errorf("config: unknown preference %q", key)
	}
	p.mu.Lock()
	p.values[key] = v
	p.mu.Unlock()
	return nil
}

// Unset removes a preference.
func (p *Prefs) Unset(key string) {
	p.mu.Lock()
	delete(p.values, key)
	p.mu.Unlock()
}
