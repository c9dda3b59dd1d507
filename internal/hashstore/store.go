// Package hashstore records, per content file and per check, the body hash
// that was last processed successfully. A missing entry means "never
// processed" and is reported as absent, never as an error.
package hashstore

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/dih-project/wishonia/internal/storage"
)

// Backend names accepted by Open.
const (
	BackendJSON        = "json"
	BackendSQLite      = "sqlite"
	BackendFrontmatter = "frontmatter"
)

// Store persists (path, field) -> digest entries.
type Store interface {
	// Get returns the recorded digest; ok is false when no entry exists.
	Get(path, field string) (digest string, ok bool, err error)
	// Set records digest for (path, field).
	Set(path, field, digest string) error
	// Remove deletes the entry for (path, field).
	Remove(path, field string) error
	// RemoveAll deletes every entry for path.
	RemoveAll(path string) error
	Close() error
}

// Open creates the store selected by backend. loc is the index file for the
// json backend and the database file for sqlite; the frontmatter backend
// writes into the content files themselves through files. An unreadable
// json or sqlite store opens empty.
func Open(backend, loc string, files storage.Provider, logger *slog.Logger) (Store, error) {
	root := ""
	if files != nil {
		root = files.Root()
	}
	switch backend {
	case "", BackendJSON:
		return NewJSON(loc, root, logger), nil
	case BackendSQLite:
		s, err := OpenSQLiteRecover(loc, root, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendFrontmatter:
		if files == nil {
			return nil, fmt.Errorf("hashstore: frontmatter backend needs a file provider")
		}
		return NewFrontmatter(files), nil
	default:
		return nil, fmt.Errorf("hashstore: unknown backend %q", backend)
	}
}

// NormalizePath turns p into the key used by every backend: relative to
// root, forward slashes, cleaned. Keys must be normalized before comparison
// or a file reached through a different spelling loses its history.
func NormalizePath(root, p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if root != "" {
		r := filepath.ToSlash(filepath.Clean(root))
		if p == r {
			return "."
		}
		if strings.HasPrefix(p, r+"/") {
			p = strings.TrimPrefix(p, r+"/")
		}
	}
	p = path.Clean(p)
	return strings.TrimPrefix(p, "./")
}
