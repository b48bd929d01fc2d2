package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure ChangeStore implements the interfaces.
var (
	_ driven.EnhancementStore = (*ChangeStore)(nil)
	_ driven.ChangeStore      = (*ChangeStore)(nil)
)

// ChangeStore is an in-memory implementation of driven.EnhancementStore
// and driven.ChangeStore.
type ChangeStore struct {
	mu           sync.RWMutex
	enhancements map[string]domain.Enhancement
	changes      map[string]domain.ChangeRecord
}

// NewChangeStore creates a new in-memory change store.
func NewChangeStore() *ChangeStore {
	return &ChangeStore{
		enhancements: make(map[string]domain.Enhancement),
		changes:      make(map[string]domain.ChangeRecord),
	}
}

// SaveEnhancement stores or updates an enhancement.
func (s *ChangeStore) SaveEnhancement(_ context.Context, e *domain.Enhancement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enhancements[e.ID] = *e
	return nil
}

// GetEnhancement retrieves an enhancement by ID.
func (s *ChangeStore) GetEnhancement(_ context.Context, id string) (*domain.Enhancement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enhancements[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

// UpdateEnhancement replaces the enhancement if its status still equals expected.
func (s *ChangeStore) UpdateEnhancement(_ context.Context, e *domain.Enhancement, expected domain.EnhancementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.enhancements[e.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != expected {
		return fmt.Errorf("%w: enhancement is %s, expected %s", domain.ErrStateConflict, stored.Status, expected)
	}
	s.enhancements[e.ID] = *e
	return nil
}

// CompleteEnhancement stores changes and the finished enhancement together.
func (s *ChangeStore) CompleteEnhancement(_ context.Context, e *domain.Enhancement, changes []domain.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.enhancements[e.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != domain.EnhancementProcessing {
		return fmt.Errorf("%w: enhancement is %s, expected %s",
			domain.ErrStateConflict, stored.Status, domain.EnhancementProcessing)
	}
	for _, c := range changes {
		if c.EnhancementID != e.ID {
			return fmt.Errorf("change %s belongs to %s: %w", c.ID, c.EnhancementID, domain.ErrInvalidInput)
		}
	}
	for _, c := range changes {
		s.changes[c.ID] = c
	}
	s.enhancements[e.ID] = *e
	return nil
}

// TransitionEnhancement changes only the status if it still equals expected.
func (s *ChangeStore) TransitionEnhancement(_ context.Context, id string, expected, to domain.EnhancementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enhancements[id]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != expected {
		return fmt.Errorf("%w: enhancement is %s, expected %s", domain.ErrStateConflict, e.Status, expected)
	}
	e.Status = to
	s.enhancements[id] = e
	return nil
}

// ListActiveEnhancements returns enhancements still processing.
func (s *ChangeStore) ListActiveEnhancements(_ context.Context) ([]domain.Enhancement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Enhancement
	for _, e := range s.enhancements {
		if !e.Status.IsTerminal() {
			out = append(out, e)
		}
	}
	sortEnhancements(out)
	return out, nil
}

// ListEnhancements returns a document's enhancements, newest first.
func (s *ChangeStore) ListEnhancements(_ context.Context, documentID string) ([]domain.Enhancement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Enhancement
	for _, e := range s.enhancements {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	sortEnhancements(out)
	return out, nil
}

// SaveChanges stores change records.
func (s *ChangeStore) SaveChanges(_ context.Context, changes []domain.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range changes {
		if _, ok := s.enhancements[c.EnhancementID]; !ok {
			return fmt.Errorf("change %s: enhancement %s: %w", c.ID, c.EnhancementID, domain.ErrNotFound)
		}
	}
	for _, c := range changes {
		s.changes[c.ID] = c
	}
	return nil
}

// GetChange retrieves a record by ID.
func (s *ChangeStore) GetChange(_ context.Context, id string) (*domain.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.changes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// ListChanges returns an enhancement's records ordered by enhanced start.
func (s *ChangeStore) ListChanges(_ context.Context, enhancementID string) ([]domain.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ChangeRecord
	for _, c := range s.changes {
		if c.EnhancementID == enhancementID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Enhanced.Start != out[j].Enhanced.Start {
			return out[i].Enhanced.Start < out[j].Enhanced.Start
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SetDecision records the reviewer's decision on a change.
func (s *ChangeStore) SetDecision(_ context.Context, id string, decision domain.UserDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.changes[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Decision = decision
	s.changes[id] = c
	return nil
}

func sortEnhancements(es []domain.Enhancement) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].CreatedAt.Equal(es[j].CreatedAt) {
			return es[i].CreatedAt.After(es[j].CreatedAt)
		}
		return es[i].ID > es[j].ID
	})
}
