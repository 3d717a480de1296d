// Package state holds the last completed curation run for each session.
//
// The UI layer re-executes on every interaction; serving a completed run
// (previews, downloads) reads from here and never re-invokes the curation
// service. Transitions are all-or-nothing: a finished run replaces the prior
// one in a single Commit, a failed run commits nothing, so the last
// successful run stays visible and downloadable until a new run completes.
package state

import (
	"sync"
	"time"
)

// Selection is one finalized four-photo set with its proposal text.
// Assets holds asset names in display order, seed first.
type Selection struct {
	Theme     string   `json:"theme"`
	Narrative string   `json:"narrative"`
	Rationale string   `json:"rationale"`
	Assets    []string `json:"assets"`
}

// Run is one completed curation run.
type Run struct {
	GenerationID string      `json:"generationId"`
	SeedName     string      `json:"seedName"`
	Model        string      `json:"model"`
	Selections   []Selection `json:"selections"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Store maps session IDs to their last completed run. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	runs map[string]*Run
}

// NewStore creates an empty run store.
func NewStore() *Store {
	return &Store{runs: make(map[string]*Run)}
}

// Commit atomically replaces the session's run with a completed one. Stale
// proposals never survive a commit; partial runs are never committed at all.
func (s *Store) Commit(sessionID string, run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[sessionID] = run
}

// Get returns the session's last completed run, or nil if none exists.
func (s *Store) Get(sessionID string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[sessionID]
}

// Clear discards the session's run.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, sessionID)
}
