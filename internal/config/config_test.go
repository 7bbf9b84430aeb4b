package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writePrefs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recon-tracer", prefsFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(env(nil), filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.StorageDriver != "fs" || c.BlobDriver != "fs" || c.LogLevel != "info" {
		t.Fatalf("defaults = %+v", c)
	}
	if c.Workers != runtime.GOMAXPROCS(0) {
		t.Fatalf("workers = %d", c.Workers)
	}
	if c.S3Region != "us-east-1" {
		t.Fatalf("region = %q", c.S3Region)
	}
}

func TestLoadLayering(t *testing.T) {
	path := writePrefs(t, `{"storage_driver": "sqlite", "workers": 3, "user": "carol", "s3_path_style": true}`)
	tests := []struct {
		name        string
		env         map[string]string
		wantDriver  string
		wantWorkers int
		wantUser    string
	}{
		{name: "prefs over defaults", wantDriver: "sqlite", wantWorkers: 3, wantUser: "carol"},
		{
			name:        "env over prefs",
			env:         map[string]string{"RECON_STORAGE_DRIVER": "postgres", "RECON_WORKERS": "8"},
			wantDriver:  "postgres",
			wantWorkers: 8,
			wantUser:    "carol",
		},
		{
			name:        "blank env falls through",
			env:         map[string]string{"RECON_USER": "  "},
			wantDriver:  "sqlite",
			wantWorkers: 3,
			wantUser:    "carol",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(env(tt.env), path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if c.StorageDriver != tt.wantDriver || c.Workers != tt.wantWorkers || c.User != tt.wantUser {
				t.Fatalf("got driver=%q workers=%d user=%q", c.StorageDriver, c.Workers, c.User)
			}
			if !c.S3PathStyle {
				t.Fatal("path style preference lost")
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	good := filepath.Join(t.TempDir(), "none.json")
	tests := []struct {
		name  string
		env   map[string]string
		prefs string
	}{
		{name: "bad env int", env: map[string]string{"RECON_WORKERS": "many"}},
		{name: "bad env bool", env: map[string]string{"RECON_S3_PATH_STYLE": "maybe"}},
		{name: "zero workers", env: map[string]string{"RECON_WORKERS": "0"}},
		{name: "bad level", env: map[string]string{"RECON_LOG_LEVEL": "loud"}},
		{name: "malformed prefs", prefs: `{"workers":`},
		{name: "wrong pref type", prefs: `{"workers": "two"}`},
		{name: "fractional pref", prefs: `{"workers": 1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := good
			if tt.prefs != "" {
				path = writePrefs(t, tt.prefs)
			}
			if _, err := Load(env(tt.env), path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPrefsSetSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", prefsFile)
	p, err := LoadPrefs(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Set("workers", "2"); err != nil {
		t.Fatalf("Set workers: %v", err)
	}
	if err := p.Set("s3_path_style", "true"); err != nil {
		t.Fatalf("Set path style: %v", err)
	}
	if err := p.Set("backup_dir", "/srv/backups"); err != nil {
		t.Fatalf("Set backup_dir: %v", err)
	}
	if err := p.Set("colour", "red"); err == nil {
		t.Fatal("unknown key accepted")
	}
	if err := p.Set("workers", "two"); err == nil {
		t.Fatal("bad integer accepted")
	}
	if err := p.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c, err := Load(env(nil), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Workers != 2 || !c.S3PathStyle || c.BackupDir != "/srv/backups" {
		t.Fatalf("config = %+v", c)
	}
	if got := c.BlobOptions("/fallback").Root; got != "/srv/backups" {
		t.Fatalf("blob root = %q", got)
	}

	p.Unset("backup_dir")
	if keys := p.Keys(); len(keys) != 2 || keys[0] != "s3_path_style" || keys[1] != "workers" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestStoreOptions(t *testing.T) {
	c := Config{DataDir: "/var/recon", DSN: "postgres://x"}
	o := c.StoreOptions("demo", "/home/a")
	if o.Dir != "/var/recon" || o.Name != "demo" || o.DSN != "postgres://x" {
		t.Fatalf("options = %+v", o)
	}
	c.DataDir = ""
	if o := c.StoreOptions("demo", "/home/a"); o.Dir != "/home/a" {
		t.Fatalf("dir = %q", o.Dir)
	}
}

func TestBlobOptions(t *testing.T) {
	c, err := Load(env(map[string]string{
		"RECON_BLOB_DRIVER":   "s3",
		"RECON_S3_BUCKET":     "backups",
		"RECON_S3_ACCESS_KEY": "AKIA",
		"RECON_S3_SECRET_KEY": "SECRET",
	}), filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	opts := c.BlobOptions("/series/backups")
	if opts.Driver != "s3" || opts.Root != "/series/backups" {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.S3.Bucket != "backups" || opts.S3.AccessKeyID != "AKIA" || opts.S3.SecretAccessKey != "SECRET" {
		t.Fatalf("s3 = %+v", opts.S3)
	}
	if m := c.Map(); m["s3_secret_key"] != "****" || m["s3_access_key"] != "AKIA" {
		t.Fatalf("map = %v", m)
	}
}
