package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.LoadSeries(ctx); !IsNotFound(err) {
		t.Fatalf("LoadSeries on empty store: %v", err)
	}
	if _, err := s.LoadSection(ctx, 3); !IsNotFound(err) {
		t.Fatalf("LoadSection on empty store: %v", err)
	}
	if _, err := s.LoadExistingLog(ctx); !IsNotFound(err) {
		t.Fatalf("LoadExistingLog on empty store: %v", err)
	}

	if err := s.SaveSeries(ctx, []byte(`{"alignment":"default"}`)); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}
	if err := s.SaveSection(ctx, 2, []byte(`{"src":"b"}`)); err != nil {
		t.Fatalf("SaveSection: %v", err)
	}
	if err := s.SaveSections(ctx, map[int][]byte{0: []byte(`{"src":"a"}`), 2: []byte(`{"src":"c"}`)}); err != nil {
		t.Fatalf("SaveSections: %v", err)
	}
	if err := s.SaveExistingLog(ctx, "Date, Time, User, Obj, Sections, Event"); err != nil {
		t.Fatalf("SaveExistingLog: %v", err)
	}

	nums, err := s.ListSections(ctx)
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if !reflect.DeepEqual(nums, []int{0, 2}) {
		t.Fatalf("ListSections = %v", nums)
	}
	data, err := s.LoadSection(ctx, 2)
	if err != nil || string(data) != `{"src":"c"}` {
		t.Fatalf("LoadSection = %s, %v", data, err)
	}
	ser, err := s.LoadSeries(ctx)
	if err != nil || string(ser) != `{"alignment":"default"}` {
		t.Fatalf("LoadSeries = %s, %v", ser, err)
	}
	log, err := s.LoadExistingLog(ctx)
	if err != nil || !strings.HasPrefix(log, "Date") {
		t.Fatalf("LoadExistingLog = %q, %v", log, err)
	}

	if err := s.DeleteSection(ctx, 0); err != nil {
		t.Fatalf("DeleteSection: %v", err)
	}
	if err := s.DeleteSection(ctx, 0); err != nil {
		t.Fatalf("DeleteSection twice: %v", err)
	}
	if nums, _ := s.ListSections(ctx); !reflect.DeepEqual(nums, []int{2}) {
		t.Fatalf("after delete ListSections = %v", nums)
	}
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemory())
}

func TestFSStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir, "demo")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	exercise(t, s)
	if s.Dir() != filepath.Join(dir, ".demo") {
		t.Fatalf("Dir = %s", s.Dir())
	}
	if _, err := NewFS(dir, ""); err == nil {
		t.Fatal("NewFS without a name should fail")
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, DriverSQLite, Options{Dir: t.TempDir(), Name: "demo"})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer s.Close()
	if s.Driver() != DriverSQLite {
		t.Fatalf("Driver = %s", s.Driver())
	}
	exercise(t, s)
}

func TestSQLiteSeriesScoping(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := NewSQLite(ctx, path, "a")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer a.Close()
	if err := a.SaveSection(ctx, 1, []byte(`{}`)); err != nil {
		t.Fatalf("SaveSection: %v", err)
	}
	b, err := NewSQLite(ctx, path, "b")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer b.Close()
	if nums, _ := b.ListSections(ctx); len(nums) != 0 {
		t.Fatalf("series b sees %v", nums)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mongo", Options{}); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	s := &sqlStore{numbered: true}
	got := s.rebind(`SELECT payload FROM documents WHERE series = ? AND kind = ? AND num = ?`)
	want := `SELECT payload FROM documents WHERE series = $1 AND kind = $2 AND num = $3`
	if got != want {
		t.Fatalf("rebind = %s", got)
	}
}

// recordingConn is a minimal database/sql driver connection that records
// executed statements.
type recordingConn struct {
	execs    []string
	failPing bool
}

type recordingDriver struct{ conn *recordingConn }

func (d *recordingDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return nil, errors.New("not implemented") }

func (c *recordingConn) Ping(context.Context) error {
	if c.failPing {
		return errors.New("ping fail")
	}
	return nil
}

func (c *recordingConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	return driver.RowsAffected(1), nil
}

func newRecordingDB(conn *recordingConn) *sql.DB {
	name := fmt.Sprintf("recording%d", time.Now().UnixNano())
	sql.Register(name, &recordingDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db
}

func TestNewPostgresEnsuresTable(t *testing.T) {
	conn := &recordingConn{}
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return newRecordingDB(conn), nil
	})
	defer restore()

	p, err := NewPostgres(context.Background(), "", "demo")
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if gotDriver != "pgx" || gotDSN != defaultDSN {
		t.Fatalf("opened %s %s", gotDriver, gotDSN)
	}
	if len(conn.execs) != 1 || !strings.Contains(conn.execs[0], "BYTEA") {
		t.Fatalf("execs = %v", conn.execs)
	}
	if err := p.SaveSeries(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}
	if last := conn.execs[len(conn.execs)-1]; !strings.Contains(last, "VALUES($1, $2, $3, $4)") {
		t.Fatalf("upsert not rebound: %s", last)
	}
}

func TestNewPostgresPingFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return newRecordingDB(&recordingConn{failPing: true}), nil
	})
	defer restore()
	if _, err := NewPostgres(context.Background(), "postgres://x", "demo"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}
