// Package repository implements the durable StateRepository port consumed
// by pkg/observers: an in-memory cache in front of a bbolt-backed,
// bucket-per-entity store.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/dipeo/eventplane/pkg/events"
	"github.com/dipeo/eventplane/pkg/log"
	"github.com/dipeo/eventplane/pkg/observers"
)

var bucketExecutions = []byte("executions")

// cacheEntry tracks whether the cached state has been written to bbolt
// since its last mutation, so PersistNow knows what it must flush.
type cacheEntry struct {
	state *observers.ExecutionState
	dirty bool
}

// BoltStore implements observers.StateRepository: ordinary writes land in
// an in-memory cache only; PersistNow forces the durable bbolt write. This
// gives callers an immediate-vs-deferred persistence split in one cohesive
// type instead of a separate cache and persistence manager.
type BoltStore struct {
	db *bolt.DB

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "eventplane.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketExecutions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, cache: make(map[string]*cacheEntry)}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) GetExecution(ctx context.Context, executionID string) (*observers.ExecutionState, error) {
	s.mu.Lock()
	if entry, ok := s.cache[executionID]; ok {
		defer s.mu.Unlock()
		return entry.state, nil
	}
	s.mu.Unlock()

	var state observers.ExecutionState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExecutions)
		data := b.Get([]byte(executionID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		return nil, err
	}
	if state.ExecutionID == "" {
		return nil, nil
	}

	s.mu.Lock()
	s.cache[executionID] = &cacheEntry{state: &state, dirty: false}
	s.mu.Unlock()
	return &state, nil
}

// SaveExecution writes to the cache only; it does not force a durable
// write. Callers that need a guaranteed durable write (terminal status
// transitions) follow up with PersistNow.
func (s *BoltStore) SaveExecution(ctx context.Context, state *observers.ExecutionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[state.ExecutionID] = &cacheEntry{state: state, dirty: true}
	return nil
}

// UpdateStatus is idempotent per execution id: once an execution is
// recorded as FAILED, a later call (e.g. a double-delivered EXECUTION_ERROR)
// leaves its status and first error message untouched rather than
// overwriting them.
func (s *BoltStore) UpdateStatus(ctx context.Context, executionID string, status events.Status, errMsg string) error {
	s.mu.Lock()
	entry, ok := s.cache[executionID]
	if !ok {
		entry = &cacheEntry{state: &observers.ExecutionState{ExecutionID: executionID}}
		s.cache[executionID] = entry
	}
	if entry.state.Status == events.StatusFailed {
		s.mu.Unlock()
		return nil
	}
	entry.state.Status = status
	entry.state.Error = errMsg
	entry.dirty = true
	s.mu.Unlock()
	return nil
}

func (s *BoltStore) ImmediatePersistenceCapable() bool { return true }

func (s *BoltStore) PersistNow(ctx context.Context, executionID string) error {
	s.mu.Lock()
	entry, ok := s.cache[executionID]
	if !ok || !entry.dirty {
		s.mu.Unlock()
		if !ok {
			log.WithComponent("boltstore").Warn().Str("execution_id", executionID).Msg("no cache entry found to persist")
		}
		return nil
	}
	data, err := json.Marshal(entry.state)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to marshal execution state: %w", err)
	}
	s.mu.Unlock()

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketExecutions)
		return b.Put([]byte(executionID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to persist execution %s: %w", executionID, err)
	}

	s.mu.Lock()
	entry.dirty = false
	s.mu.Unlock()
	return nil
}
