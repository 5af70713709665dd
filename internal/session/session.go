// Package session is a small key-value store scoped to one client session.
// Values are JSON documents stored as files under <dir>/<session-id>/.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrInvalidKey is returned for keys that cannot be used as file names.
var ErrInvalidKey = errors.New("invalid session key")

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidName reports whether name is usable as a session id or key: letters,
// digits, '_', '.' and '-', and not "." or "..".
func ValidName(name string) bool {
	return validKey.MatchString(name) && name != "." && name != ".."
}

// Store is a session-scoped key-value store.
type Store interface {
	// Load decodes the value stored under key into v. It reports false when
	// nothing is stored.
	Load(key string, v interface{}) (bool, error)
	Save(key string, v interface{}) error
	Delete(key string) error
	// Clear drops every key of the session.
	Clear() error
	Keys() ([]string, error)
}

// FileStore implements Store on an afero filesystem.
type FileStore struct {
	fs  afero.Fs
	dir string
	id  string

	mu sync.Mutex
}

// NewFileStore returns a store for sessionID rooted at dir. A nil fs uses the
// operating system filesystem.
func NewFileStore(fs afero.Fs, dir, sessionID string) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{
		fs:  fs,
		dir: filepath.Join(dir, sessionID),
		id:  sessionID,
	}
}

// Dir returns the directory holding this session's keys.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) (string, error) {
	if !ValidName(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Load implements Store.
func (s *FileStore) Load(key string, v interface{}) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read session key %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to decode session key %s: %w", key, err)
	}
	return true, nil
}

// Save implements Store. The value is written to a temp file and renamed
// into place so readers never see a partial document.
func (s *FileStore) Save(key string, v interface{}) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode session key %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session key %s: %w", key, err)
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to save session key %s: %w", key, err)
	}
	return nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (s *FileStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session key %s: %w", key, err)
	}
	return nil
}

// Clear implements Store. It refuses to run for a session id that would
// resolve outside its own directory.
func (s *FileStore) Clear() error {
	if !ValidName(s.id) {
		return fmt.Errorf("%w: session id %q", ErrInvalidKey, s.id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Keys implements Store. Keys are returned sorted.
func (s *FileStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list session: %w", err)
	}

	var keys []string
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}
