package hashstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS hashes (
	path       TEXT NOT NULL,
	field      TEXT NOT NULL,
	digest     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (path, field)
);
`

// SQLite keeps entries in a single table. Each Set is its own statement, so
// an interrupted run keeps every entry committed before the interruption.
type SQLite struct {
	conn *sql.DB
	root string
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn, root string) (*SQLite, error) {
	if dir := filepath.Dir(dsn); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("hashstore: mkdir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("hashstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("hashstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("hashstore: apply schema: %w", err)
	}
	return &SQLite{conn: conn, root: root}, nil
}

// OpenSQLiteRecover is OpenSQLite for bookkeeping that must not block a
// run: when an existing database cannot be opened it is moved aside to
// dsn+".corrupt" and a fresh, empty one is created in its place.
func OpenSQLiteRecover(dsn, root string, logger *slog.Logger) (*SQLite, error) {
	s, err := OpenSQLite(dsn, root)
	if err == nil {
		return s, nil
	}
	if _, serr := os.Stat(dsn); serr != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	aside := dsn + ".corrupt"
	logger.Warn("hash database unreadable, starting empty",
		slog.String("path", dsn), slog.String("moved_to", aside), slog.String("error", err.Error()))
	if rerr := os.Rename(dsn, aside); rerr != nil {
		return nil, fmt.Errorf("hashstore: move aside %s: %w", dsn, rerr)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(dsn + suffix)
	}
	return OpenSQLite(dsn, root)
}

// Get implements Store.
func (s *SQLite) Get(path, field string) (string, bool, error) {
	var d string
	err := s.conn.QueryRow(`SELECT digest FROM hashes WHERE path = ? AND field = ?`,
		NormalizePath(s.root, path), field).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("hashstore: get: %w", err)
	}
	return d, true, nil
}

// Set implements Store.
func (s *SQLite) Set(path, field, digest string) error {
	_, err := s.conn.Exec(`
		INSERT INTO hashes (path, field, digest, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path, field) DO UPDATE SET
			digest     = excluded.digest,
			updated_at = excluded.updated_at
	`, NormalizePath(s.root, path), field, digest)
	if err != nil {
		return fmt.Errorf("hashstore: set: %w", err)
	}
	return nil
}

// Remove implements Store.
func (s *SQLite) Remove(path, field string) error {
	if _, err := s.conn.Exec(`DELETE FROM hashes WHERE path = ? AND field = ?`,
		NormalizePath(s.root, path), field); err != nil {
		return fmt.Errorf("hashstore: remove: %w", err)
	}
	return nil
}

// RemoveAll implements Store.
func (s *SQLite) RemoveAll(path string) error {
	if _, err := s.conn.Exec(`DELETE FROM hashes WHERE path = ?`, NormalizePath(s.root, path)); err != nil {
		return fmt.Errorf("hashstore: remove all: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
