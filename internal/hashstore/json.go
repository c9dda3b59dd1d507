package hashstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/dih-project/wishonia/internal/storage"
)

// index is the on-disk layout: { path: { field: digest } }.
type index map[string]map[string]string

// JSON keeps every entry in a single project-wide JSON object. Each mutation
// reads the whole object, changes it and writes it back atomically.
type JSON struct {
	path   string
	root   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewJSON returns a store backed by the index file at path. The file is
// created on first Set.
func NewJSON(path, root string, logger *slog.Logger) *JSON {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSON{path: path, root: root, logger: logger}
}

// Path returns the index file location.
func (s *JSON) Path() string { return s.path }

// load reads the index. A missing or corrupt file is an empty store.
func (s *JSON) load() index {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("hashstore: read failed, starting empty",
				slog.String("path", s.path), slog.String("error", err.Error()))
		}
		return index{}
	}
	idx := index{}
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Warn("hashstore: corrupt index, starting empty",
			slog.String("path", s.path), slog.String("error", err.Error()))
		return index{}
	}
	return idx
}

func (s *JSON) save(idx index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("hashstore: marshal: %w", err)
	}
	data = append(data, '\n')
	if err := storage.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("hashstore: save: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *JSON) Get(path, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.load()[NormalizePath(s.root, path)]
	if !ok {
		return "", false, nil
	}
	d, ok := entry[field]
	return d, ok, nil
}

// Set implements Store.
func (s *JSON) Set(path, field, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.load()
	key := NormalizePath(s.root, path)
	if idx[key] == nil {
		idx[key] = map[string]string{}
	}
	idx[key][field] = digest
	return s.save(idx)
}

// Remove implements Store.
func (s *JSON) Remove(path, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.load()
	key := NormalizePath(s.root, path)
	entry, ok := idx[key]
	if !ok {
		return nil
	}
	if _, ok := entry[field]; !ok {
		return nil
	}
	delete(entry, field)
	if len(entry) == 0 {
		delete(idx, key)
	}
	return s.save(idx)
}

// RemoveAll implements Store.
func (s *JSON) RemoveAll(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.load()
	key := NormalizePath(s.root, path)
	if _, ok := idx[key]; !ok {
		return nil
	}
	delete(idx, key)
	return s.save(idx)
}

// Entries returns a copy of every recorded entry.
func (s *JSON) Entries() map[string]map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Close implements Store.
func (s *JSON) Close() error { return nil }
