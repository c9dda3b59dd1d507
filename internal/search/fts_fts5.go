//go:build sqlite_fts5

package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS passages_fts USING fts5(
			path UNINDEXED,
			seq UNINDEXED,
			title,
			heading,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, path string, seq int, title, heading, body string) error {
	_, err := tx.Exec(`INSERT INTO passages_fts (path, seq, title, heading, body) VALUES (?, ?, ?, ?, ?)`,
		path, seq, title, heading, body)
	if err != nil {
		return fmt.Errorf("search: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM passages_fts WHERE path = ?`, path)
}

// quoteTerms turns free text into an FTS5 query of quoted terms so user
// punctuation is never parsed as query syntax.
func quoteTerms(query string) string {
	var terms []string
	for _, t := range strings.Fields(query) {
		terms = append(terms, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " ")
}

// Search runs an FTS5 query over passages, best match first.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	q := quoteTerms(query)
	if q == "" {
		return nil, nil
	}
	rows, err := ix.conn.QueryContext(ctx, `
		SELECT f.path, f.title, f.heading, p.line, p.body,
		       snippet(passages_fts, 4, '**', '**', '...', 32)
		FROM passages_fts f
		JOIN passages p ON p.path = f.path AND p.seq = f.seq
		WHERE passages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Path, &r.Title, &r.Heading, &r.Line, &r.Body, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
