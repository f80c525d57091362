package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"void-ai-chat/internal/domain/ports/repository"
)

var _ repository.KeyValueStore = (*KVStore)(nil)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const (
	queryCreateKV = `CREATE TABLE IF NOT EXISTS kv_store (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	)`
	queryGetKV = `SELECT value FROM kv_store WHERE key = ?`
	queryPutKV = `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, strftime('%s','now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// KVStore is the local key-value backend. Writes go through a single connection;
// reads use a small pool.
type KVStore struct {
	writeDB *sql.DB // single connection for writes
	readDB  *sql.DB
	path    string
}

func NewKVStore(ctx context.Context, path string) (*KVStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: empty path")
	}

	if path == MemoryPath {
		// every connection to :memory: is a separate database, so share one
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("failed to open memory database: %w", err)
		}
		db.SetMaxOpenConns(1)
		s := &KVStore{writeDB: db, readDB: db, path: path}
		if err := s.init(ctx, false); err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	writeDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", path)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)

	s := &KVStore{writeDB: writeDB, readDB: readDB, path: path}
	if err := s.init(ctx, true); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *KVStore) init(ctx context.Context, wal bool) error {
	if wal {
		for _, p := range pragmas {
			if _, err := s.writeDB.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("failed to set %s: %w", p, err)
			}
		}
	}
	if _, err := s.writeDB.ExecContext(ctx, queryCreateKV); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.readDB.QueryRowContext(ctx, queryGetKV, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.writeDB.ExecContext(ctx, queryPutKV, key, value); err != nil {
		return fmt.Errorf("sqlite set %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Close() error {
	var errs []error
	if s.readDB != nil && s.readDB != s.writeDB {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	return errors.Join(errs...)
}
