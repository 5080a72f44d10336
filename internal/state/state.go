// Package state persists the small set of client-side string values that
// outlive a single command: the bearer token, the redirect intent and the
// in-progress e-mail flows. Values are stored unencrypted and never expire.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known keys.
const (
	KeyToken              = "token"
	KeyRedirectAfterLogin = "redirectAfterLogin"
	KeyPendingEmail       = "pending_email"
	KeyResetEmail         = "reset_email"
	KeyOTPVerified        = "otp_verified"
	KeyTheme              = "theme"
)

const stateFileName = "growthctl_state.json"

// Store is a string key/value store. Remove of a missing key is not an error.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	// Take returns the value and deletes it in one step.
	Take(key string) (string, bool, error)
}

// FileStore keeps every key in one JSON document on disk. Each operation is a
// full read-modify-write under the store mutex.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by dir/growthctl_state.json. An empty
// dir resolves through DefaultDir.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir()
	}
	return &FileStore{path: filepath.Join(dir, stateFileName)}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// DefaultDir prefers GROWTH_STATE_DIR, then the user config dir, then the
// working directory, then the temp dir.
func DefaultDir() string {
	if dir := os.Getenv("GROWTH_STATE_DIR"); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "growthctl")
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return os.TempDir()
}

// loadAllUnlocked reads the state file. Caller must hold s.mu.
func (s *FileStore) loadAllUnlocked() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	out := make(map[string]string)
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return out, nil
}

// saveAllUnlocked writes the state file atomically. Caller must hold s.mu.
func (s *FileStore) saveAllUnlocked(m map[string]string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("mkdir state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	// 0600: the file holds a bearer token
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.loadAllUnlocked()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.loadAllUnlocked()
	if err != nil {
		return err
	}
	m[key] = value
	return s.saveAllUnlocked(m)
}

func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.loadAllUnlocked()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.saveAllUnlocked(m)
}

func (s *FileStore) Take(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.loadAllUnlocked()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	if !ok {
		return "", false, nil
	}
	delete(m, key)
	if err := s.saveAllUnlocked(m); err != nil {
		return "", false, err
	}
	return v, true, nil
}

// All returns a copy of every persisted value.
func (s *FileStore) All() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAllUnlocked()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *MemoryStore) Take(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	delete(s.m, key)
	return v, ok, nil
}

// GetString is Get with a missing key and a read error both reported as "".
func GetString(s Store, key string) string {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return ""
	}
	return v
}
