package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"void-ai-chat/internal/domain/ports/repository"
)

var _ repository.KeyValueStore = (*KVStore)(nil)

// executor is the subset of *pgxpool.Pool (or pgx.Tx) the store needs.
type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

const (
	queryCreateKV = `
CREATE TABLE IF NOT EXISTS kv_store (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
	queryGetKV = `SELECT value FROM kv_store WHERE key = $1;`
	queryPutKV = `
INSERT INTO kv_store (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  updated_at = EXCLUDED.updated_at;`
)

// KVStore keeps whole state records in a single Postgres table.
type KVStore struct {
	db      executor
	closeFn func()
}

// NewKVStore wraps db. closeFn (for example pool.Close) runs on Close.
func NewKVStore(db executor, closeFn func()) *KVStore {
	return &KVStore{db: db, closeFn: closeFn}
}

// EnsureSchema creates the table if it does not exist.
func (s *KVStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, queryCreateKV); err != nil {
		return fmt.Errorf("create kv_store: %w", err)
	}
	return nil
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	if err := s.db.QueryRow(ctx, queryGetKV, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	tag, err := s.db.Exec(ctx, queryPutKV, key, value)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("kv set %q: %d rows affected", key, tag.RowsAffected())
	}
	return nil
}

func (s *KVStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
