// Package history persists the recent-searches list shown on the home screen.
package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store keeps the most recent queries, newest first, backed by a JSON file.
type Store struct {
	mu      sync.Mutex
	path    string
	limit   int
	queries []string
}

// Open loads the history file at path. Missing files start from seed.
func Open(path string, limit int, seed []string) (*Store, error) {
	if limit <= 0 {
		limit = 1
	}
	s := &Store{path: path, limit: limit}
	queries, err := Load(path)
	if err != nil {
		return nil, err
	}
	if queries == nil {
		queries = seed
	}
	for i := len(queries) - 1; i >= 0; i-- {
		s.push(queries[i])
	}
	return s, nil
}

// Recent returns a copy of the stored queries, newest first.
func (s *Store) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

// Add records query as the newest entry and saves the file.
func (s *Store) Add(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(query)
	if s.path == "" {
		return nil
	}
	return Save(s.path, s.queries)
}

// push moves query to the front, dropping duplicates and the overflow.
func (s *Store) push(query string) {
	out := make([]string, 0, len(s.queries)+1)
	out = append(out, query)
	for _, q := range s.queries {
		if !strings.EqualFold(q, query) {
			out = append(out, q)
		}
	}
	if len(out) > s.limit {
		out = out[:s.limit]
	}
	s.queries = out
}

// Load reads queries from disk. Missing files return nil.
func Load(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var queries []string
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, err
	}
	return queries, nil
}

// Save writes queries to disk, creating parent directories as needed.
func Save(path string, queries []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(queries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
