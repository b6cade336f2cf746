package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	_ "modernc.org/sqlite"

	ferrors "github.com/chibaminto/compactalarm/internal/foundation/errors"
)

// SQLiteKV persists keys in a SQLite database.
// Use ":memory:" for an in-memory database, or a file path for persistence.
type SQLiteKV struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteKV opens the database and ensures the schema exists.
func NewSQLiteKV(dbPath string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "open sqlite database").
			WithContext("path", dbPath).
			Build()
	}

	kv := &SQLiteKV{db: db}
	if err := kv.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "initialize schema").Build()
	}
	return kv, nil
}

func (s *SQLiteKV) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value for key, with ok=false for an absent key.
func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ferrors.WrapError(err, ferrors.CategoryPersistence, "select kv row").
			WithContext("key", key).
			Build()
	}
	return value, true, nil
}

// Set upserts the value for key.
func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPersistence, "upsert kv row").
			WithContext("key", key).
			Build()
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
