// file: repository/token_store.go

package repository

import (
	"encoding/json"
	"fmt"
	"loan-desk-api/logger"
	"loan-desk-api/model"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore is the persistence contract for refresh-token records, keyed by
// the SHA-256 of the opaque secret. Implementations must serialize mutations:
// Delete reports whether the key was present so a caller can atomically claim
// a record during rotation.
type TokenStore interface {
	Get(key string) (*model.RefreshTokenRecord, bool)
	Put(key string, record *model.RefreshTokenRecord) error
	Delete(key string) (bool, error)
	Scan(visit func(key string, record *model.RefreshTokenRecord))
}

// FileTokenStore keeps the token table in memory and mirrors it to a JSON
// side-file so outstanding refresh tokens survive a process restart. Losing
// the file is non-fatal: users simply have to authenticate again.
type FileTokenStore struct {
	mu      sync.Mutex
	path    string
	records map[string]*model.RefreshTokenRecord
}

// NewFileTokenStore loads any previously persisted token table from path.
// A missing or unreadable file yields an empty store, not an error.
func NewFileTokenStore(path string) *FileTokenStore {
	s := &FileTokenStore{
		path:    path,
		records: make(map[string]*model.RefreshTokenRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Log.WithError(err).WithField("path", path).
				Warn("Could not read persisted token store, starting empty")
		}
		return s
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		logger.Log.WithError(err).WithField("path", path).
			Warn("Persisted token store is corrupt, starting empty")
		s.records = make(map[string]*model.RefreshTokenRecord)
	}
	return s
}

func (s *FileTokenStore) Get(key string) (*model.RefreshTokenRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	return record, ok
}

// Put stores the record in memory and then persists the table. A persistence
// failure leaves the record in memory and is returned for the caller to log.
func (s *FileTokenStore) Put(key string, record *model.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record
	return s.persistLocked()
}

func (s *FileTokenStore) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[key]
	if !existed {
		return false, nil
	}
	delete(s.records, key)
	return true, s.persistLocked()
}

// Scan visits a snapshot of the table so long sweeps never hold the lock
// while the visitor runs.
func (s *FileTokenStore) Scan(visit func(key string, record *model.RefreshTokenRecord)) {
	s.mu.Lock()
	snapshot := make(map[string]*model.RefreshTokenRecord, len(s.records))
	for k, v := range s.records {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for k, v := range snapshot {
		visit(k, v)
	}
}

// persistLocked writes the table to a temp file and renames it into place so
// a crash mid-write never leaves a truncated store behind. Caller holds mu.
func (s *FileTokenStore) persistLocked() error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("marshal token store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token store directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token store: %w", err)
	}
	return nil
}

// MemoryTokenStore is a non-durable TokenStore used by tests and by
// deployments that accept losing refresh tokens on restart.
type MemoryTokenStore struct {
	mu      sync.Mutex
	records map[string]*model.RefreshTokenRecord
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{records: make(map[string]*model.RefreshTokenRecord)}
}

func (s *MemoryTokenStore) Get(key string) (*model.RefreshTokenRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	return record, ok
}

func (s *MemoryTokenStore) Put(key string, record *model.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record
	return nil
}

func (s *MemoryTokenStore) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[key]
	delete(s.records, key)
	return existed, nil
}

func (s *MemoryTokenStore) Scan(visit func(key string, record *model.RefreshTokenRecord)) {
	s.mu.Lock()
	snapshot := make(map[string]*model.RefreshTokenRecord, len(s.records))
	for k, v := range s.records {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for k, v := range snapshot {
		visit(k, v)
	}
}
