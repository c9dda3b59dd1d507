package search

import (
	"context"
	"fmt"
	"time"
)

// Doc is one indexed content file.
type Doc struct {
	Path      string
	Title     string
	Section   string
	Checksum  string
	UpdatedAt time.Time
}

// Passage is a heading-delimited slice of a document body.
type Passage struct {
	Heading string
	Line    int
	Body    string
}

// Result is one search hit.
type Result struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Heading string `json:"heading,omitempty"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
	Body    string `json:"-"`
}

// Searcher is the retrieval interface consumers depend on.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

var _ Searcher = (*Index)(nil)

// Upsert replaces a document and all of its passages in one transaction.
func (ix *Index) Upsert(d Doc, passages []Passage) error {
	tx, err := ix.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO documents (path, title, section, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			section    = excluded.section,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, d.Path, d.Title, d.Section, d.Checksum, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("search: upsert document: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM passages WHERE path = ?`, d.Path); err != nil {
		return fmt.Errorf("search: clear passages: %w", err)
	}
	ftsDelete(tx, d.Path)
	stmt, err := tx.Prepare(`INSERT INTO passages (path, seq, heading, line, body) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("search: prepare passage insert: %w", err)
	}
	defer stmt.Close()
	for i, p := range passages {
		if _, err := stmt.Exec(d.Path, i, p.Heading, p.Line, p.Body); err != nil {
			return fmt.Errorf("search: insert passage: %w", err)
		}
		if err := ftsInsert(tx, d.Path, i, d.Title, p.Heading, p.Body); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes a document and its passages.
func (ix *Index) Delete(path string) error {
	tx, err := ix.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM passages WHERE path = ?`, path); err != nil {
		return fmt.Errorf("search: delete passages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("search: delete document: %w", err)
	}
	return tx.Commit()
}

// Checksums returns path -> checksum for every indexed document.
func (ix *Index) Checksums() (map[string]string, error) {
	rows, err := ix.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("search: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Count returns the number of indexed documents and passages.
func (ix *Index) Count() (docs, passages int, err error) {
	if err := ix.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&docs); err != nil {
		return 0, 0, fmt.Errorf("search: count: %w", err)
	}
	if err := ix.conn.QueryRow(`SELECT count(*) FROM passages`).Scan(&passages); err != nil {
		return 0, 0, fmt.Errorf("search: count: %w", err)
	}
	return docs, passages, nil
}

func snippet(body string, n int) string {
	r := []rune(body)
	if len(r) <= n {
		return body
	}
	return string(r[:n]) + "..."
}
