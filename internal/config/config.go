// Package config resolves runtime settings from environment variables, the
// preferences file and built-in defaults, strongest first.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"runtime"
	"strconv"
	"strings"

	opts "github.com/goliatone/go-options/layering"

	"recon-tracer/internal/blob"
	"recon-tracer/internal/store"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "RECON_"

// Layer is one source of settings. Nil fields are unset and fall through to
// weaker layers.
type Layer struct {
	StorageDriver *string
	DataDir       *string
	DSN           *string
	Workers       *int
	User          *string
	LogLevel      *string
	BlobDriver    *string
	BackupDir     *string
	S3Bucket      *string
	S3Region      *string
	S3Endpoint    *string
	S3PathStyle   *bool
	S3Prefix      *string
	S3AccessKey   *string
	S3SecretKey   *string
}

// Config is the resolved configuration.
type Config struct {
	// StorageDriver selects the document store: fs, memory, sqlite or postgres.
	StorageDriver string
	// DataDir holds the sqlite database; empty uses the archive's directory.
	DataDir string
	DSN     string
	Workers int
	User    string
	// LogLevel is debug, info, warn or error.
	LogLevel    string
	BlobDriver  string
	BackupDir   string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3Prefix    string
	// S3AccessKey and S3SecretKey are static credentials; empty uses the
	// AWS default chain.
	S3AccessKey string
	S3SecretKey string
}

type kind int

const (
	kindUnknown kind = iota
	kindString
	kindInt
	kindBool
)

// keyKinds lists the preference keys, which are also the lower-case
// environment variable suffixes.
var keyKinds = map[string]kind{
	"storage_driver": kindString,
	"data_dir":       kindString,
	"pg_dsn":         kindString,
	"workers":        kindInt,
	"user":           kindString,
	"log_level":      kindString,
	"blob_driver":    kindString,
	"backup_dir":     kindString,
	"s3_bucket":      kindString,
	"s3_region":      kindString,
	"s3_endpoint":    kindString,
	"s3_path_style":  kindBool,
	"s3_prefix":      kindString,
	"s3_access_key":  kindString,
	"s3_secret_key":  kindString,
}

func ptr[T any](v T) *T { return &v }

// Defaults returns the built-in layer.
func Defaults() Layer {
	name := os.Getenv("USER")
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return Layer{
		StorageDriver: ptr(store.DriverFS),
		DataDir:       ptr(""),
		DSN:           ptr(""),
		Workers:       ptr(runtime.GOMAXPROCS(0)),
		User:          ptr(name),
		LogLevel:      ptr("info"),
		BlobDriver:    ptr(string(blob.DriverFilesystem)),
		BackupDir:     ptr(""),
		S3Bucket:      ptr(""),
		S3Region:      ptr("us-east-1"),
		S3Endpoint:    ptr(""),
		S3PathStyle:   ptr(false),
		S3Prefix:      ptr(""),
		S3AccessKey:   ptr(""),
		S3SecretKey:   ptr(""),
	}
}

// fields maps every key to its slot in l.
func (l *Layer) fields() map[string]any {
	return map[string]any{
		"storage_driver": &l.StorageDriver,
		"data_dir":       &l.DataDir,
		"pg_dsn":         &l.DSN,
		"workers":        &l.Workers,
		"user":           &l.User,
		"log_level":      &l.LogLevel,
		"blob_driver":    &l.BlobDriver,
		"backup_dir":     &l.BackupDir,
		"s3_bucket":      &l.S3Bucket,
		"s3_region":      &l.S3Region,
		"s3_endpoint":    &l.S3Endpoint,
		"s3_path_style":  &l.S3PathStyle,
		"s3_prefix":      &l.S3Prefix,
		"s3_access_key":  &l.S3AccessKey,
		"s3_secret_key":  &l.S3SecretKey,
	}
}

// FromEnv builds a layer from RECON_* variables; getenv is usually
// os.Getenv. Empty variables are unset.
func FromEnv(getenv func(string) string) (Layer, error) {
	var l Layer
	for key, slot := range l.fields() {
		name := EnvPrefix + strings.ToUpper(key)
		raw := strings.TrimSpace(getenv(name))
		if raw == "" {
			continue
		}
		switch p := slot.(type) {
		case **string:
			*p = ptr(raw)
		case **int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Layer{}, fmt.Errorf("config: %s: %w", name, err)
			}
			*p = &n
		case **bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return Layer{}, fmt.Errorf("config: %s: %w", name, err)
			}
			*p = &b
		}
	}
	return l, nil
}

// Layer converts the preferences into a layer.
func (p *Prefs) Layer() (Layer, error) {
	var l Layer
	for key, slot := range l.fields() {
		var err error
		switch dst := slot.(type) {
		case **string:
			*dst, err = p.string(key)
		case **int:
			*dst, err = p.int(key)
		case **bool:
			*dst, err = p.bool(key)
		}
		if err != nil {
			return Layer{}, err
		}
	}
	return l, nil
}

// Resolve merges layers, strongest first, over the defaults.
func Resolve(layers ...Layer) (Config, error) {
	merged := opts.MergeLayers(append(layers, Defaults())...)
	c := Config{
		StorageDriver: *merged.StorageDriver,
		DataDir:       *merged.DataDir,
		DSN:           *merged.DSN,
		Workers:       *merged.Workers,
		User:          *merged.User,
		LogLevel:      *merged.LogLevel,
		BlobDriver:    *merged.BlobDriver,
		BackupDir:     *merged.BackupDir,
		S3Bucket:      *merged.S3Bucket,
		S3Region:      *merged.S3Region,
		S3Endpoint:    *merged.S3Endpoint,
		S3PathStyle:   *merged.S3PathStyle,
		S3Prefix:      *merged.S3Prefix,
		S3AccessKey:   *merged.S3AccessKey,
		S3SecretKey:   *merged.S3SecretKey,
	}
	if c.Workers < 1 {
		return Config{}, fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if _, err := c.SlogLevel(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load resolves the environment over the preferences file at prefsPath.
func Load(getenv func(string) string, prefsPath string) (Config, error) {
	env, err := FromEnv(getenv)
	if err != nil {
		return Config{}, err
	}
	prefs, err := LoadPrefs(prefsPath)
	if err != nil {
		return Config{}, err
	}
	pl, err := prefs.Layer()
	if err != nil {
		return Config{}, err
	}
	return Resolve(env, pl)
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return l, nil
}

// StoreOptions returns the store options for series name under dir.
func (c Config) StoreOptions(name, dir string) store.Options {
	if c.DataDir != "" {
		dir = c.DataDir
	}
	return store.Options{Name: name, Dir: dir, DSN: c.DSN}
}

// BlobOptions returns the backup store options. The fs driver writes to
// BackupDir, or to fallback when it is empty.
func (c Config) BlobOptions(fallback string) blob.Options {
	root := c.BackupDir
	if root == "" {
		root = fallback
	}
	return blob.Options{
		Driver: c.BlobDriver,
		Root:   root,
		S3: blob.S3Config{
			Bucket:          c.S3Bucket,
			Region:          c.S3Region,
			Endpoint:        c.S3Endpoint,
			PathStyle:       c.S3PathStyle,
			Prefix:          c.S3Prefix,
			AccessKeyID:     c.S3AccessKey,
			SecretAccessKey: c.S3SecretKey,
		},
	}
}

// Map returns the resolved settings under their preference keys. The secret
// key is masked.
func (c Config) Map() map[string]string {
	secret := ""
	if c.S3SecretKey != "" {
		secret = "****"
	}
	return map[string]string{
		"storage_driver": c.StorageDriver,
		"data_dir":       c.DataDir,
		"pg_dsn":         c.DSN,
		"workers":        strconv.Itoa(c.Workers),
		"user":           c.User,
		"log_level":      c.LogLevel,
		"blob_driver":    c.BlobDriver,
		"backup_dir":     c.BackupDir,
		"s3_bucket":      c.S3Bucket,
		"s3_region":      c.S3Region,
		"s3_endpoint":    c.S3Endpoint,
		"s3_path_style":  strconv.FormatBool(c.S3PathStyle),
		"s3_prefix":      c.S3Prefix,
		"s3_access_key":  c.S3AccessKey,
		"s3_secret_key":  secret,
	}
}
