package cachestore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	marketlens "github.com/marketlens/marketlens/internal"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite is the durable store, backed by a persisted SQLite database via
// modernc.org/sqlite. The database is opened lazily on first use (the
// spec's load step) and every mutation commits its own transaction (the
// flush step) before the operation is considered complete.
type SQLite struct {
	dsn       string
	namespace string

	once    sync.Once
	initErr error
	write   *sql.DB // single-writer connection
	read    *sql.DB // multi-reader pool
}

// NewSQLite creates a durable store for the given namespace. The database
// is not touched until the first operation.
func NewSQLite(dsn, namespace string) *SQLite {
	return &SQLite{dsn: dsn, namespace: namespace}
}

// init opens the database and runs migrations exactly once. Subsequent
// calls return the memoized result.
func (s *SQLite) init() error {
	s.once.Do(func() {
		pragmas := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

		// For :memory: databases, use shared cache so read/write pools share the same data
		var fullDSN string
		if s.dsn == ":memory:" {
			fullDSN = "file::memory:?mode=memory&cache=shared&" + pragmas
		} else {
			fullDSN = "file:" + s.dsn + "?" + pragmas
		}

		write, err := sql.Open("sqlite", fullDSN)
		if err != nil {
			s.initErr = fmt.Errorf("open write db: %w", err)
			return
		}
		write.SetMaxOpenConns(1)

		read, err := sql.Open("sqlite", fullDSN)
		if err != nil {
			write.Close()
			s.initErr = fmt.Errorf("open read db: %w", err)
			return
		}
		read.SetMaxOpenConns(max(4, runtime.NumCPU()))

		if err := runMigrations(write); err != nil {
			write.Close()
			read.Close()
			s.initErr = fmt.Errorf("migrations: %w", err)
			return
		}

		s.write = write
		s.read = read
	})
	if s.initErr != nil {
		return fmt.Errorf("%w: %w", marketlens.ErrStorageUnavailable, s.initErr)
	}
	return nil
}

// runMigrations applies embedded SQL migrations using goose.
// fs.Sub strips the "migrations/" prefix so goose sees files at the FS root.
func runMigrations(db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	_, err = provider.Up(context.Background())
	return err
}

// Store overwrites the entry at key with value stamped now. The write is
// committed before Store returns.
func (s *SQLite) Store(ctx context.Context, key string, value any) error {
	if err := s.init(); err != nil {
		return err
	}
	e, err := encodeEntry(value, time.Now())
	if err != nil {
		return err
	}
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", marketlens.ErrStorageUnavailable, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO cache_entries (namespace, key, value, created_at, last_updated_ms)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET
		   value = excluded.value,
		   created_at = excluded.created_at,
		   last_updated_ms = excluded.last_updated_ms`,
		s.namespace, key, string(e.Value), e.CreatedAt, e.LastUpdatedMs,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: store %q: %w", marketlens.ErrStorageUnavailable, key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: flush %q: %w", marketlens.ErrStorageUnavailable, key, err)
	}
	return nil
}

// Get returns the entry at key. Absent rows and rows whose value is not
// valid JSON both report false.
func (s *SQLite) Get(ctx context.Context, key string) (*marketlens.Entry, bool) {
	if err := s.init(); err != nil {
		return nil, false
	}
	var value, createdAt string
	var lastUpdated int64
	err := s.read.QueryRowContext(ctx,
		`SELECT value, created_at, last_updated_ms FROM cache_entries
		 WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&value, &createdAt, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !json.Valid([]byte(value)) {
		// Corrupt entry: treat as a miss, never raise.
		return nil, false
	}
	return &marketlens.Entry{
		Value:         json.RawMessage(value),
		CreatedAt:     createdAt,
		LastUpdatedMs: lastUpdated,
	}, true
}

// Has reports whether an entry exists at key.
func (s *SQLite) Has(ctx context.Context, key string) bool {
	_, ok := s.Get(ctx, key)
	return ok
}

// Clear removes one entry; no-op when absent.
func (s *SQLite) Clear(ctx context.Context, key string) error {
	if err := s.init(); err != nil {
		return err
	}
	_, err := s.write.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	)
	if err != nil {
		return fmt.Errorf("%w: clear %q: %w", marketlens.ErrStorageUnavailable, key, err)
	}
	return nil
}

// ClearAll removes every entry in this store's namespace. Rows written
// under other namespaces are untouched.
func (s *SQLite) ClearAll(ctx context.Context) error {
	if err := s.init(); err != nil {
		return err
	}
	_, err := s.write.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ?`, s.namespace,
	)
	if err != nil {
		return fmt.Errorf("%w: clear all: %w", marketlens.ErrStorageUnavailable, err)
	}
	return nil
}

// Keys returns the namespace's keys, sorted by recency of write.
func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	rows, err := s.read.QueryContext(ctx,
		`SELECT key FROM cache_entries WHERE namespace = ? ORDER BY last_updated_ms DESC`,
		s.namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: keys: %w", marketlens.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes both database connections. Safe to call before first use.
func (s *SQLite) Close() error {
	if s.write == nil && s.read == nil {
		return nil
	}
	var errs []error
	if s.write != nil {
		errs = append(errs, s.write.Close())
	}
	if s.read != nil {
		errs = append(errs, s.read.Close())
	}
	return errors.Join(errs...)
}
