// Package cachefile implements the CredentialCache port as a JSON file that
// maps vault item names to {username, password} records.
package cachefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
)

// fileMode restricts the cache to owner read/write.
const fileMode fs.FileMode = 0o600

// entry is one cached credential as stored on disk. Sealed records that
// Password holds the base64 AES-GCM payload rather than plaintext.
type entry struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Sealed   bool   `json:"sealed,omitempty"`
}

// Compile-time interface satisfaction check.
var _ driven.CredentialCache = (*Store)(nil)

// Store is the file-backed credential cache. Writes are serialized by an
// in-process mutex and an exclusive flock on "<path>.lock", so an interactive
// job and a scheduled job cannot lose each other's entries.
type Store struct {
	path   string
	key    []byte // 32-byte AES-256 key; nil stores passwords unsealed.
	mu     sync.Mutex
	lock   *flock.Flock
	logger *slog.Logger
}

// NewStore creates a Store at path. key must be 32 bytes, or nil to keep
// passwords unsealed in the file.
func NewStore(path string, key []byte, logger *slog.Logger) (*Store, error) {
	if key != nil && len(key) != 32 {
		return nil, driven.ErrInvalidCacheKey
	}
	return &Store{
		path:   path,
		key:    key,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}, nil
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the cached credential for itemName. Unreadable, corrupt or
// undecryptable entries are reported as a miss.
func (s *Store) Lookup(itemName string) (model.Credential, bool) {
	entries, err := s.load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("credential cache unreadable, treating as miss", "path", s.path, "error", err)
		}
		return model.Credential{}, false
	}

	e, ok := entries[itemName]
	if !ok {
		return model.Credential{}, false
	}

	password, err := s.open(e.Password, e.Sealed)
	if err != nil {
		s.logger.Warn("cached credential could not be opened, treating as miss", "item", itemName, "error", err)
		return model.Credential{}, false
	}

	cred := model.Credential{Username: e.Username, Password: password}
	if !cred.IsComplete() {
		return model.Credential{}, false
	}
	return cred, true
}

// Store merges cred into the cache (read-merge-write) and restricts the file
// to owner read/write right after the write.
func (s *Store) Store(itemName string, cred model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock credential cache: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Error("unlock credential cache", "error", err)
		}
	}()

	entries, err := s.load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("existing credential cache unreadable, rewriting", "path", s.path, "error", err)
		}
		entries = make(map[string]entry)
	}

	password, sealed, err := s.seal(cred.Password)
	if err != nil {
		return err
	}
	entries[itemName] = entry{Username: cred.Username, Password: password, Sealed: sealed}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential cache: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write credential cache: %w", err)
	}
	if err := os.Chmod(s.path, fileMode); err != nil {
		return fmt.Errorf("restrict credential cache permissions: %w", err)
	}
	return nil
}

// Clear deletes the cache file. A missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential cache: %w", err)
	}
	return nil
}

// load reads and parses the whole cache file.
func (s *Store) load() (map[string]entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var entries map[string]entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse credential cache: %w", err)
	}
	if entries == nil {
		return nil, fmt.Errorf("parse credential cache: top-level value is not an object")
	}
	return entries, nil
}
