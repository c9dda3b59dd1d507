package hashstore

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/dih-project/wishonia/internal/document"
	"github.com/dih-project/wishonia/internal/storage"
)

// Frontmatter stores each entry as a field in the metadata block of the file
// it describes (e.g. lastFormatHash). It exists for books that still carry
// embedded hashes; Migrate moves them into an external store.
type Frontmatter struct {
	files storage.Provider
}

// NewFrontmatter returns a store that reads and writes metadata blocks via files.
func NewFrontmatter(files storage.Provider) *Frontmatter {
	return &Frontmatter{files: files}
}

func (s *Frontmatter) read(path string) (*document.Document, bool, error) {
	data, err := s.files.Read(NormalizePath(s.files.Root(), path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	doc, err := document.Parse(data)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *Frontmatter) write(path string, doc *document.Document) error {
	out, err := doc.Bytes()
	if err != nil {
		return err
	}
	return s.files.Write(NormalizePath(s.files.Root(), path), out)
}

// Get implements Store.
func (s *Frontmatter) Get(path, field string) (string, bool, error) {
	doc, ok, err := s.read(path)
	if err != nil || !ok {
		return "", false, err
	}
	d := doc.StringField(field)
	return d, d != "", nil
}

// Set implements Store.
func (s *Frontmatter) Set(path, field, digest string) error {
	doc, ok, err := s.read(path)
	if err != nil {
		return fmt.Errorf("hashstore: set %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("hashstore: set %s: %w", path, fs.ErrNotExist)
	}
	if doc.StringField(field) == digest {
		return nil
	}
	if err := doc.SetField(field, digest); err != nil {
		return err
	}
	return s.write(path, doc)
}

// Remove implements Store.
func (s *Frontmatter) Remove(path, field string) error {
	doc, ok, err := s.read(path)
	if err != nil || !ok {
		return err
	}
	if !doc.DeleteField(field) {
		return nil
	}
	return s.write(path, doc)
}

// RemoveAll deletes every last*Hash field from the file.
func (s *Frontmatter) RemoveAll(path string) error {
	doc, ok, err := s.read(path)
	if err != nil || !ok {
		return err
	}
	changed := false
	for _, k := range EmbeddedFields(doc) {
		changed = doc.DeleteField(k) || changed
	}
	if !changed {
		return nil
	}
	return s.write(path, doc)
}

// Close implements Store.
func (s *Frontmatter) Close() error { return nil }
