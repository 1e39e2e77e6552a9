package repository

import (
	"loan-desk-api/model"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleRecord(userID int) *model.RefreshTokenRecord {
	return &model.RefreshTokenRecord{
		ID:        "rec-1",
		UserID:    userID,
		Username:  "officer1",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
		CreatedAt: time.Now().UTC(),
	}
}

func TestFileTokenStore_PersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")

	store := NewFileTokenStore(path)
	assert.NoError(t, store.Put("key-a", sampleRecord(1)))
	assert.NoError(t, store.Put("key-b", sampleRecord(2)))

	// A fresh store over the same file sees the persisted table.
	reloaded := NewFileTokenStore(path)
	record, ok := reloaded.Get("key-a")
	assert.True(t, ok)
	assert.Equal(t, 1, record.UserID)

	record, ok = reloaded.Get("key-b")
	assert.True(t, ok)
	assert.Equal(t, 2, record.UserID)
}

func TestFileTokenStore_MissingFileStartsEmpty(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	_, ok := store.Get("anything")
	assert.False(t, ok)
}

func TestFileTokenStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	assert.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewFileTokenStore(path)
	_, ok := store.Get("anything")
	assert.False(t, ok)

	// The store remains usable and re-persists cleanly.
	assert.NoError(t, store.Put("key", sampleRecord(1)))
	reloaded := NewFileTokenStore(path)
	_, ok = reloaded.Get("key")
	assert.True(t, ok)
}

func TestFileTokenStore_DeleteReportsExistence(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	assert.NoError(t, store.Put("key", sampleRecord(1)))

	existed, err := store.Delete("key")
	assert.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete("key")
	assert.NoError(t, err)
	assert.False(t, existed)
}

// The delete-reports-existence contract is what makes rotation single-use:
// of N concurrent claims exactly one may observe the record.
func TestMemoryTokenStore_ConcurrentDeleteClaim(t *testing.T) {
	store := NewMemoryTokenStore()
	assert.NoError(t, store.Put("key", sampleRecord(1)))

	const claimants = 32
	var wg sync.WaitGroup
	claims := make(chan bool, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			existed, err := store.Delete("key")
			assert.NoError(t, err)
			claims <- existed
		}()
	}
	wg.Wait()
	close(claims)

	winners := 0
	for claimed := range claims {
		if claimed {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestMemoryTokenStore_ScanVisitsSnapshot(t *testing.T) {
	store := NewMemoryTokenStore()
	assert.NoError(t, store.Put("key-a", sampleRecord(1)))
	assert.NoError(t, store.Put("key-b", sampleRecord(2)))

	seen := map[string]bool{}
	store.Scan(func(key string, record *model.RefreshTokenRecord) {
		seen[key] = true
		// Mutating during the scan must not deadlock: the visitor runs
		// outside the store lock.
		_, _ = store.Delete(key)
	})
	assert.Len(t, seen, 2)
}
