// Package search keeps a SQLite index of the book's passages so the chat
// agent, the HTTP API and the MCP server can retrieve relevant text.
// Full-text search uses FTS5 when built with the sqlite_fts5 tag.
package search

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	section    TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS passages (
	path    TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	heading TEXT NOT NULL DEFAULT '',
	line    INTEGER NOT NULL DEFAULT 1,
	body    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (path, seq)
);
`

// Index wraps the search database.
type Index struct {
	conn *sql.DB
}

// Open opens (or creates) the database at dsn and applies the schema.
func Open(dsn string) (*Index, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("search: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: apply fts schema: %w", err)
	}
	return &Index{conn: conn}, nil
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.conn.Close()
}
