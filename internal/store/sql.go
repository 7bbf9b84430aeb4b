package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// sqlStore keeps every document in one table keyed by (series, kind, num).
// The SQL is written with ? placeholders and rebound for postgres.
type sqlStore struct {
	db       *sql.DB
	driver   string
	series   string
	numbered bool // postgres uses $n placeholders
}

const documentsDDL = `CREATE TABLE IF NOT EXISTS documents (
	series TEXT NOT NULL,
	kind TEXT NOT NULL,
	num INTEGER NOT NULL,
	payload %s NOT NULL,
	PRIMARY KEY (series, kind, num)
)`

const upsertDocument = `INSERT INTO documents(series, kind, num, payload) VALUES(?, ?, ?, ?)
	ON CONFLICT(series, kind, num) DO UPDATE SET payload = excluded.payload`

func (s *sqlStore) rebind(q string) string {
	if !s.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) ensureTable(ctx context.Context, payloadType string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(documentsDDL, payloadType)); err != nil {
		return fmt.Errorf("ensure documents table: %w", err)
	}
	return nil
}

func (s *sqlStore) Driver() string { return s.driver }

func (s *sqlStore) load(ctx context.Context, kind string, n int) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT payload FROM documents WHERE series = ? AND kind = ? AND num = ?`),
		s.series, kind, n).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundError{Kind: kind, N: n}
	}
	if err != nil {
		return nil, fmt.Errorf("select %s %d: %w", kind, n, err)
	}
	return payload, nil
}

func (s *sqlStore) save(ctx context.Context, kind string, n int, data []byte) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(upsertDocument), s.series, kind, n, data); err != nil {
		return fmt.Errorf("upsert %s %d: %w", kind, n, err)
	}
	return nil
}

func (s *sqlStore) ListSections(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT num FROM documents WHERE series = ? AND kind = ?`), s.series, kindSection)
	if err != nil {
		return nil, fmt.Errorf("select sections: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select sections: %w", err)
	}
	sort.Ints(out)
	return out, nil
}

func (s *sqlStore) LoadSection(ctx context.Context, n int) ([]byte, error) {
	return s.load(ctx, kindSection, n)
}

func (s *sqlStore) SaveSection(ctx context.Context, n int, data []byte) error {
	return s.save(ctx, kindSection, n, data)
}

func (s *sqlStore) SaveSections(ctx context.Context, docs map[int][]byte) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	q := s.rebind(upsertDocument)
	keys := make([]int, 0, len(docs))
	for n := range docs {
		keys = append(keys, n)
	}
	sort.Ints(keys)
	for _, n := range keys {
		if _, err := tx.ExecContext(ctx, q, s.series, kindSection, n, docs[n]); err != nil {
			return fmt.Errorf("upsert section %d: %w", n, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *sqlStore) DeleteSection(ctx context.Context, n int) error {
	if _, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM documents WHERE series = ? AND kind = ? AND num = ?`),
		s.series, kindSection, n); err != nil {
		return fmt.Errorf("delete section %d: %w", n, err)
	}
	return nil
}

func (s *sqlStore) LoadSeries(ctx context.Context) ([]byte, error) {
	return s.load(ctx, kindSeries, 0)
}

func (s *sqlStore) SaveSeries(ctx context.Context, data []byte) error {
	return s.save(ctx, kindSeries, 0, data)
}

func (s *sqlStore) LoadExistingLog(ctx context.Context) (string, error) {
	data, err := s.load(ctx, kindLog, 0)
	return string(data), err
}

func (s *sqlStore) SaveExistingLog(ctx context.Context, log string) error {
	return s.save(ctx, kindLog, 0, []byte(log))
}

func (s *sqlStore) Close() error { return s.db.Close() }
