package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	postgresDriver = "pgx"
	defaultDSN     = "postgres://localhost/recon?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Postgres stores documents in a shared Postgres table, one row per
// (series, kind, num).
type Postgres struct {
	sqlStore
}

// NewPostgres connects to dsn (defaultDSN when empty) and ensures the
// documents table exists.
func NewPostgres(ctx context.Context, dsn, series string) (*Postgres, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if series == "" {
		series = "series"
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{sqlStore: sqlStore{db: db, driver: DriverPostgres, series: series, numbered: true}}
	if err := p.ensureTable(ctx, "BYTEA"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// OverrideSQLOpen swaps the function used to open postgres connections and
// returns a restore func. Tests use it to inject a stub database.
func OverrideSQLOpen(fn func(driver, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}
