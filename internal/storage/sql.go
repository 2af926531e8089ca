package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// queries holds the dialect-specific statements for a settings table with
// columns (name, value, updated_at).
type queries struct {
	schema      string
	get         string
	set         string
	setIfAbsent string
	del         string
}

func postgresQueries(table string) queries {
	return queries{
		schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, table),
		get: fmt.Sprintf(`SELECT value FROM %s WHERE name = $1`, table),
		set: fmt.Sprintf(`INSERT INTO %s (name, value, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, table),
		setIfAbsent: fmt.Sprintf(`INSERT INTO %s (name, value, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (name) DO NOTHING`, table),
		del: fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, table),
	}
}

func sqliteQueries(table string) queries {
	return queries{
		schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, table),
		get: fmt.Sprintf(`SELECT value FROM %s WHERE name = ?`, table),
		set: fmt.Sprintf(`INSERT INTO %s (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, table),
		setIfAbsent: fmt.Sprintf(`INSERT OR IGNORE INTO %s (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, table),
		del:         fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, table),
	}
}

// SQLStore keeps settings in a single SQL table.
type SQLStore struct {
	db   *sql.DB
	q    queries
	owns bool
}

// NewPostgresStore uses an existing Postgres pool. The table is created by
// cmd/migrate; EnsureSchema is available for setups without migrations.
func NewPostgresStore(db *sql.DB, table string) (*SQLStore, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	return &SQLStore{db: db, q: postgresQueries(table)}, nil
}

// OpenSQLite opens (or creates) a SQLite database file and its settings table.
func OpenSQLite(ctx context.Context, path, table string) (*SQLStore, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	s := &SQLStore{db: db, q: sqliteQueries(table), owns: true}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the settings table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.q.schema); err != nil {
		return fmt.Errorf("creating settings table: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.q.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.q.set, key, string(value)); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q.setIfAbsent, key, string(value))
	if err != nil {
		return false, fmt.Errorf("init setting %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("init setting %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q.del, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database only when the store opened it.
func (s *SQLStore) Close() error {
	if s.owns {
		return s.db.Close()
	}
	return nil
}
