package hashstore

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/dih-project/wishonia/internal/document"
	"github.com/dih-project/wishonia/internal/storage"
)

var embeddedFieldRe = regexp.MustCompile(`^last[A-Z][A-Za-z0-9]*Hash$`)

// EmbeddedFields returns the metadata keys of doc that look like tracking
// hashes, sorted.
func EmbeddedFields(doc *document.Document) []string {
	var out []string
	for k := range doc.Frontmatter {
		if embeddedFieldRe.MatchString(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// MigrateStats summarizes a migration pass.
type MigrateStats struct {
	Files   int
	Entries int
	Failed  map[string]error
}

// Migrate copies embedded last*Hash fields from each file into dst and, when
// strip is set, removes them from the file afterwards. Files are handled
// independently; a failure on one is recorded and the pass continues.
func Migrate(files storage.Provider, dst Store, paths []string, strip bool, logger *slog.Logger) MigrateStats {
	stats := MigrateStats{Failed: map[string]error{}}
	for _, p := range paths {
		n, err := migrateFile(files, dst, p, strip)
		if err != nil {
			logger.Warn("migrate: failed", slog.String("path", p), slog.String("error", err.Error()))
			stats.Failed[p] = err
			continue
		}
		if n > 0 {
			stats.Files++
			stats.Entries += n
			logger.Debug("migrate: moved", slog.String("path", p), slog.Int("entries", n))
		}
	}
	return stats
}

func migrateFile(files storage.Provider, dst Store, p string, strip bool) (int, error) {
	data, err := files.Read(p)
	if err != nil {
		return 0, err
	}
	doc, err := document.Parse(data)
	if err != nil {
		return 0, err
	}
	fields := EmbeddedFields(doc)
	if len(fields) == 0 {
		return 0, nil
	}
	for _, f := range fields {
		d := doc.StringField(f)
		if d == "" {
			continue
		}
		if err := dst.Set(p, f, d); err != nil {
			return 0, fmt.Errorf("copy %s: %w", f, err)
		}
	}
	if !strip {
		return len(fields), nil
	}
	for _, f := range fields {
		doc.DeleteField(f)
	}
	out, err := doc.Bytes()
	if err != nil {
		return 0, err
	}
	if err := files.Write(p, out); err != nil {
		return 0, err
	}
	return len(fields), nil
}
