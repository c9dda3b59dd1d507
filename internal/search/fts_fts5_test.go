//go:build sqlite_fts5

package search

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	ix := testIndex(t)
	var count int
	if err := ix.conn.QueryRow(`SELECT count(*) FROM passages_fts`).Scan(&count); err != nil {
		t.Fatalf("passages_fts table missing: %v", err)
	}
}

func TestFTS5_SnippetAndPunctuation(t *testing.T) {
	ix := testIndex(t)
	_ = ix.Upsert(Doc{Path: "f.qmd", Title: "FTS", Checksum: "1", UpdatedAt: time.Now()}, []Passage{
		{Heading: "H", Line: 1, Body: "Decentralized trials are powerful and cheap."},
	})
	res, err := ix.Search(context.Background(), `powerful "AND`, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("unexpected hits for unmatched term: %+v", res)
	}
	res, err = ix.Search(context.Background(), "powerful", 10)
	if err != nil || len(res) != 1 {
		t.Fatalf("Search = %+v, %v", res, err)
	}
	if !strings.Contains(res[0].Snippet, "**powerful**") {
		t.Errorf("snippet = %q", res[0].Snippet)
	}
}
