// Package storage defines the content-tree file-system abstraction.
package storage

import "time"

// FileInfo describes one content file found under the project root.
type FileInfo struct {
	Path      string // slash-separated, relative to the project root
	Size      int64
	UpdatedAt time.Time
}

// Provider is the interface for content file operations. All paths are
// slash-separated and relative to the project root.
type Provider interface {
	// Root returns the absolute project root.
	Root() string
	// List returns every content file (.md, .qmd) under dir.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Exists reports whether path names an existing file or directory.
	Exists(path string) bool
}
