// Package corpus decides which content files a check considers, and in
// which order.
package corpus

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dih-project/wishonia/internal/storage"
)

// DefaultGlobs select every content file under the root.
var DefaultGlobs = []string{"**/*.qmd", "**/*.md"}

// Entry is one candidate file.
type Entry struct {
	Path    string  `json:"path"`
	Section Section `json:"section"`
}

// Options controls enumeration.
type Options struct {
	// Globs are matched against root-relative slash paths. Empty means DefaultGlobs.
	Globs  []string
	Ignore *IgnoreRules
	// Manifest, when set, both restricts the corpus to listed files and
	// imposes manifest order.
	Manifest *Manifest
	// Sections keeps only entries in these sections; empty keeps all.
	Sections []Section
	Logger   *slog.Logger
}

// Enumerate walks root and returns the ordered candidate set. Without a
// manifest the result is sorted by path so runs are reproducible across
// file systems.
func Enumerate(root string, opts Options) ([]Entry, error) {
	globs := opts.Globs
	if len(globs) == 0 {
		globs = DefaultGlobs
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore()
	}

	var found []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if ignore.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !storage.IsContentFile(d.Name()) || ignore.Ignored(rel, false) {
			return nil
		}
		if matchAny(globs, rel) {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpus: walk %s: %w", root, err)
	}
	sort.Strings(found)

	var out []Entry
	if opts.Manifest == nil {
		out = make([]Entry, 0, len(found))
		for _, p := range found {
			out = append(out, Entry{Path: p, Section: SectionOther})
		}
	} else {
		out = orderByManifest(found, opts.Manifest, opts.Logger)
	}
	return filterSections(out, opts.Sections), nil
}

// Restrict keeps the entries whose path is in paths, in entry order.
func Restrict(entries []Entry, paths []string) []Entry {
	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[p] = struct{}{}
	}
	var out []Entry
	for _, e := range entries {
		if _, ok := want[e.Path]; ok {
			out = append(out, e)
		}
	}
	return out
}

func orderByManifest(found []string, m *Manifest, logger *slog.Logger) []Entry {
	onDisk := make(map[string]struct{}, len(found))
	for _, p := range found {
		onDisk[p] = struct{}{}
	}
	var out []Entry
	for _, me := range m.Entries() {
		if _, ok := onDisk[me.Path]; !ok {
			if logger != nil {
				logger.Debug("corpus: manifest entry not matched on disk", slog.String("path", me.Path))
			}
			continue
		}
		out = append(out, Entry{Path: me.Path, Section: me.Section})
	}
	return out
}

func filterSections(in []Entry, keep []Section) []Entry {
	if len(keep) == 0 {
		return in
	}
	out := in[:0]
	for _, e := range in {
		for _, s := range keep {
			if e.Section == s {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func matchAny(globs []string, rel string) bool {
	for _, g := range globs {
		if Match(strings.TrimPrefix(g, "./"), rel) {
			return true
		}
	}
	return false
}

// Single builds the entry for one explicitly named file, tagging it with its
// manifest section when listed.
func Single(rel string, m *Manifest) Entry {
	rel = filepath.ToSlash(filepath.Clean(rel))
	sec, _ := m.Lookup(rel)
	return Entry{Path: strings.TrimPrefix(rel, "./"), Section: sec}
}
