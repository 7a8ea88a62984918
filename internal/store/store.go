// Package store implements the durable local key-value store backing
// WisataChat's persisted state: the bearer credential, the cached user
// profile, and the language preference. Values live in a single YAML file
// under the user config directory; reads are served from an in-memory cache
// seeded when the store is opened, writes are immediately flushed to disk.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Well-known store keys. Each piece of persisted state lives under a fixed
// stable key.
const (
	KeyCredential = "credential"    // Bearer token from the last login
	KeyProfile    = "profile"       // JSON-encoded user profile snapshot
	KeyLanguage   = "chat_language" // Persisted chat language preference
)

// Store is a file-backed key-value store. All methods are safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// DefaultPath returns the standard location of the store file,
// $XDG_CONFIG_HOME/wisatachat/settings.yaml (or the platform equivalent).
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, "wisatachat", "settings.yaml"), nil
}

// Open loads the store file at path. A missing file yields an empty store;
// a file that exists but cannot be read or parsed is an error, because
// silently discarding a credential would look like a spurious logout.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}

	return s, nil
}

// Get returns the value stored under key, or the empty string when the key
// is absent.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set stores value under key and flushes the store to disk before
// returning. There is no separate save step.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.persist()
}

// Delete removes key from the store and flushes to disk. Deleting an absent
// key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[key]; !exists {
		return nil
	}
	delete(s.values, key)
	return s.persist()
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// persist writes the current values to disk. Caller must hold s.mu.
func (s *Store) persist() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to marshal store values: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	// 0600: the file holds a bearer credential.
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}

	return nil
}
