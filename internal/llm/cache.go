package llm

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dih-project/wishonia/internal/storage"
)

// cacheEntry is one cached completion on disk.
type cacheEntry struct {
	Key       string    `json:"key"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

// Cache is a file cache of completions, one JSON file per key.
type Cache struct {
	dir string
	ttl time.Duration
}

// NewCache creates dir if needed. A zero ttl never expires entries.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("llm: create cache dir: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Get returns the cached response for key. Expired entries are removed.
func (c *Cache) Get(key string) (string, bool) {
	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var e cacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return "", false
	}
	if c.ttl > 0 && time.Since(e.CreatedAt) > c.ttl {
		_ = os.Remove(path)
		return "", false
	}
	return e.Response, true
}

// Put stores response under key.
func (c *Cache) Put(key, response string) error {
	data, err := json.Marshal(cacheEntry{Key: HashKey(key), Response: response, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("llm: marshal cache entry: %w", err)
	}
	return storage.WriteFileAtomic(c.entryPath(key), data)
}

// Delete removes the entry for key, if any.
func (c *Cache) Delete(key string) {
	_ = os.Remove(c.entryPath(key))
}

// Clear removes every cache entry.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("llm: read cache dir: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			_ = os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
	return nil
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, HashKey(key)+".json")
}

// HashKey is the hex SHA-256 of key material.
func HashKey(key string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}

// Cached serves repeated identical requests from a Cache. Answers the
// request's Accept rejects are neither stored nor served.
type Cached struct {
	inner  Completer
	model  string
	cache  *Cache
	logger *slog.Logger
}

// NewCached wraps inner. model only contributes to the cache key.
func NewCached(inner Completer, model string, cache *Cache, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{inner: inner, model: model, cache: cache, logger: logger}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Complete(ctx context.Context, req Request) (Response, error) {
	key := c.inner.Name() + "\x00" + c.model + "\x00" + strconv.FormatBool(req.JSON) + "\x00" + req.System + "\x00" + req.User
	if hit, ok := c.cache.Get(key); ok {
		if req.Accept == nil || req.Accept(hit) == nil {
			return Response{Content: hit}, nil
		}
		c.cache.Delete(key)
	}
	resp, err := c.inner.Complete(ctx, req)
	if err != nil {
		return resp, err
	}
	if req.Accept != nil {
		if aerr := req.Accept(resp.Content); aerr != nil {
			c.logger.Debug("llm answer not cached", slog.String("error", aerr.Error()))
			return resp, nil
		}
	}
	if err := c.cache.Put(key, resp.Content); err != nil {
		c.logger.Warn("llm cache write failed", slog.String("error", err.Error()))
	}
	return resp, nil
}
