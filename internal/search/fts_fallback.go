//go:build !sqlite_fts5

package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the passages table.
	return nil
}

func ftsInsert(_ *sql.Tx, _ string, _ int, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches passages containing every query term (LIKE fallback when
// FTS5 is not compiled in). Heading hits rank before body-only hits.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	var (
		where []string
		args  []any
	)
	for _, t := range terms {
		like := "%" + t + "%"
		where = append(where, "(d.title LIKE ? OR p.heading LIKE ? OR p.body LIKE ?)")
		args = append(args, like, like, like)
	}
	first := "%" + terms[0] + "%"
	args = append(args, first, limit)

	rows, err := ix.conn.QueryContext(ctx, `
		SELECT p.path, d.title, p.heading, p.line, p.body
		FROM passages p JOIN documents d ON d.path = p.path
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY (p.heading LIKE ?) DESC, p.path, p.seq
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Path, &r.Title, &r.Heading, &r.Line, &r.Body); err != nil {
			return nil, err
		}
		r.Snippet = snippet(r.Body, 200)
		out = append(out, r)
	}
	return out, rows.Err()
}
