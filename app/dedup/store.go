package dedup

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// Store persists the cache to a single file. Restore runs once at startup
// and Save once at shutdown; there is no concurrent access window.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Restore reads the persisted cache. A missing, empty or corrupt file yields
// an empty cache rather than an error.
func (s *Store) Restore() *Cache {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("No cache file found, starting with empty cache", "path", s.path)
		} else {
			slog.Warn("Failed to read cache file, starting with empty cache", "path", s.path, "error", err)
		}
		return NewCache()
	}

	return Load(data)
}

// Save overwrites the persisted cache with the current contents.
func (s *Store) Save(cache *Cache) error {
	if err := os.WriteFile(s.path, cache.Serialize(), 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	slog.Debug("Saved cache", "path", s.path, "size", cache.Len())

	return nil
}
