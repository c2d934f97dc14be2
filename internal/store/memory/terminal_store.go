package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/wolfeidau/faceterm/internal/store"
)

// TerminalStore implements store.TerminalStore using in-memory storage.
// Data is lost on restart.
type TerminalStore struct {
	mu sync.RWMutex

	assignments []store.Assignment // insertion order
	owners      map[string]string  // terminal ID -> org ID
	now         func() time.Time
}

// NewTerminalStore creates a new in-memory terminal store.
func NewTerminalStore() *TerminalStore {
	return &TerminalStore{
		owners: make(map[string]string),
		now:    time.Now,
	}
}

// Add stores a new assignment.
func (s *TerminalStore) Add(ctx context.Context, orgID, terminalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.owners[terminalID]; exists {
		return store.ErrTerminalAlreadyExists
	}

	s.assignments = append(s.assignments, store.Assignment{
		OrgID:      orgID,
		TerminalID: terminalID,
		CreatedAt:  s.now(),
	})
	s.owners[terminalID] = orgID

	return nil
}

// Remove deletes an assignment.
func (s *TerminalStore) Remove(ctx context.Context, orgID, terminalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(orgID, terminalID)
	if idx < 0 {
		return store.ErrTerminalNotFound
	}

	s.assignments = slices.Delete(s.assignments, idx, idx+1)
	delete(s.owners, terminalID)

	return nil
}

// Replace renames a terminal in place.
func (s *TerminalStore) Replace(ctx context.Context, orgID, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(orgID, oldID)
	if idx < 0 {
		return store.ErrTerminalNotFound
	}
	if _, exists := s.owners[newID]; exists {
		return store.ErrTerminalAlreadyExists
	}

	s.assignments[idx].TerminalID = newID
	delete(s.owners, oldID)
	s.owners[newID] = orgID

	return nil
}

// List returns a copy of every assignment.
func (s *TerminalStore) List(ctx context.Context) ([]store.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.assignments)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OrgID < result[j].OrgID
	})

	return result, nil
}

func (s *TerminalStore) indexLocked(orgID, terminalID string) int {
	return slices.IndexFunc(s.assignments, func(a store.Assignment) bool {
		return a.OrgID == orgID && a.TerminalID == terminalID
	})
}
