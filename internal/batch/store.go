// Package batch holds the uploaded photo batch for each session in memory.
// The store owns all original bytes; the rest of the pipeline refers to
// assets by name and never mutates them.
package batch

import (
	"fmt"
	"sync"
	"time"
)

// Asset is one uploaded photo: the original filename and the untouched bytes.
type Asset struct {
	Name string
	Data []byte
}

type sessionBatch struct {
	assets       map[string][]byte
	order        []string
	lastActivity time.Time
}

// Store maps session IDs to their uploaded batches. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	batches map[string]*sessionBatch
}

// NewStore creates an empty batch store.
func NewStore() *Store {
	return &Store{batches: make(map[string]*sessionBatch)}
}

// Put adds an asset to the session's batch, replacing any asset with the
// same name. Upload order is preserved for new names.
func (s *Store) Put(sessionID, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[sessionID]
	if !ok {
		b = &sessionBatch{assets: make(map[string][]byte)}
		s.batches[sessionID] = b
	}
	if _, exists := b.assets[name]; !exists {
		b.order = append(b.order, name)
	}
	b.assets[name] = data
	b.lastActivity = time.Now()
}

// Get returns the original bytes for one asset.
func (s *Store) Get(sessionID, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[sessionID]
	if !ok {
		return nil, fmt.Errorf("no batch for session %s", sessionID)
	}
	data, ok := b.assets[name]
	if !ok {
		return nil, fmt.Errorf("asset %q not in batch", name)
	}
	return data, nil
}

// Names returns the asset names of the session's batch in upload order.
func (s *Store) Names(sessionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[sessionID]
	if !ok {
		return nil
	}
	names := make([]string, len(b.order))
	copy(names, b.order)
	return names
}

// Len returns the number of assets in the session's batch.
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.batches[sessionID]; ok {
		return len(b.order)
	}
	return 0
}

// Contains reports whether the named asset exists in the session's batch.
func (s *Store) Contains(sessionID, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[sessionID]
	if !ok {
		return false
	}
	_, ok = b.assets[name]
	return ok
}

// Delete discards the session's entire batch.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, sessionID)
}
