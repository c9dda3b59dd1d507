package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dih-project/wishonia/internal/checksum"
	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/document"
	"github.com/dih-project/wishonia/internal/storage"
)

// maxPassage caps passage size so retrieval returns focused text.
const maxPassage = 2000

// SyncStats counts what a Sync changed.
type SyncStats struct {
	Indexed   int
	Unchanged int
	Removed   int
	Failed    int
}

// Sync brings the index up to date with entries:
//   - new or changed files are parsed and re-indexed
//   - indexed files that are no longer in entries are removed
func Sync(ctx context.Context, ix *Index, files storage.Provider, entries []corpus.Entry, logger *slog.Logger) (SyncStats, error) {
	var st SyncStats
	checksums, err := ix.Checksums()
	if err != nil {
		return st, err
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		seen[e.Path] = struct{}{}
		data, err := files.Read(e.Path)
		if err != nil {
			st.Failed++
			logger.Warn("sync: read failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		cs := checksum.Sum(data)
		if checksums[e.Path] == cs {
			st.Unchanged++
			continue
		}
		if err := IndexFile(ix, e, data); err != nil {
			st.Failed++
			logger.Warn("sync: index failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		st.Indexed++
		logger.Debug("sync: indexed", slog.String("path", e.Path))
	}

	for p := range checksums {
		if _, ok := seen[p]; ok {
			continue
		}
		if err := ix.Delete(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		st.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}
	return st, nil
}

// IndexFile parses data and replaces the indexed copy of e.
func IndexFile(ix *Index, e corpus.Entry, data []byte) error {
	doc, err := document.Parse(data)
	if err != nil {
		return err
	}
	offset := strings.Count(string(data[:len(data)-len(doc.Body)]), "\n")
	return ix.Upsert(Doc{
		Path:      e.Path,
		Title:     doc.Title(),
		Section:   string(e.Section),
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now().UTC(),
	}, SplitPassages(doc.Body, offset))
}

// SplitPassages cuts body at headings outside code fences, and again when
// a passage grows past maxPassage. Line numbers are file lines.
func SplitPassages(body string, lineOffset int) []Passage {
	var (
		out     []Passage
		cur     strings.Builder
		heading string
		start   = 1
		inFence bool
	)
	flush := func(next int) {
		text := strings.TrimSpace(cur.String())
		if text != "" {
			out = append(out, Passage{Heading: heading, Line: lineOffset + start, Body: text})
		}
		cur.Reset()
		start = next
	}
	for i, line := range strings.Split(body, "\n") {
		n := i + 1
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(trimmed, "#") {
			if level := strings.IndexFunc(trimmed, func(r rune) bool { return r != '#' }); level > 0 && level <= 6 && trimmed[level] == ' ' {
				flush(n)
				heading = strings.TrimSpace(trimmed[level:])
			}
		}
		if cur.Len()+len(line) > maxPassage && cur.Len() > 0 {
			flush(n)
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush(0)
	return out
}
