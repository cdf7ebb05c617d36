package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a persistent Backend storing one area of items in a SQLite table.
// Several areas can share one database file.
type SQLite struct {
	db    *sql.DB
	area  string
	owned bool
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS storage_items (
    area TEXT NOT NULL,
    key TEXT NOT NULL,
    value BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (area, key)
);
`

// OpenSQLite creates or opens the database at path and returns the backend
// for area. Pass ":memory:" for a private in-memory database.
func OpenSQLite(path, area string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &SQLite{db: db, area: area, owned: true}, nil
}

// Area returns a backend for another area sharing the same database. Closing
// it does not close the database.
func (s *SQLite) Area(area string) *SQLite {
	return &SQLite{db: s.db, area: area}
}

func (s *SQLite) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM storage_items WHERE area = ? AND key = ?`, s.area, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) Set(key string, value []byte) error {
	_, err := s.db.Exec(`
INSERT INTO storage_items (area, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(area, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.area, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM storage_items WHERE area = ? AND key = ?`, s.area, key); err != nil {
		return fmt.Errorf("sqlite remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) KeyCount() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM storage_items WHERE area = ?`, s.area).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLite) TotalSize() int64 {
	var n sql.NullInt64
	if err := s.db.QueryRow(`SELECT SUM(LENGTH(key) + LENGTH(value)) FROM storage_items WHERE area = ?`, s.area).Scan(&n); err != nil {
		return 0
	}
	return n.Int64
}

func (s *SQLite) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
