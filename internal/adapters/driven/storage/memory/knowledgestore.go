package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure KnowledgeStore implements the interfaces.
var (
	_ driven.KnowledgeStore = (*KnowledgeStore)(nil)
	_ driven.MergeAuditLog  = (*KnowledgeStore)(nil)
)

// KnowledgeStore is an in-memory implementation of driven.KnowledgeStore
// and driven.MergeAuditLog.
type KnowledgeStore struct {
	mu        sync.RWMutex
	items     map[string]domain.KnowledgeItem
	decisions []domain.MergeAuditEntry
}

// NewKnowledgeStore creates a new in-memory knowledge store.
func NewKnowledgeStore() *KnowledgeStore {
	return &KnowledgeStore{
		items: make(map[string]domain.KnowledgeItem),
	}
}

// SaveItem stores or updates an item.
func (s *KnowledgeStore) SaveItem(_ context.Context, item *domain.KnowledgeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
	return nil
}

// GetItem retrieves an item by ID.
func (s *KnowledgeStore) GetItem(_ context.Context, id string) (*domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

// DeleteItem removes an item.
func (s *KnowledgeStore) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// ListItems returns a project's items ordered by category then name.
func (s *KnowledgeStore) ListItems(_ context.Context, projectID string, filter driven.KnowledgeFilter) ([]domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.KnowledgeItem
	for _, item := range s.items {
		if item.ProjectID != projectID {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.FlaggedOnly && !item.IsFlagged {
			continue
		}
		if filter.MaxConfidence > 0 && item.Confidence > filter.MaxConfidence {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindNearby returns items of the category whose name resembles name, closest first.
func (s *KnowledgeStore) FindNearby(
	_ context.Context,
	projectID string,
	category domain.Category,
	name string,
) ([]domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var same []domain.KnowledgeItem
	for _, item := range s.items {
		if item.ProjectID == projectID && item.Category == category {
			same = append(same, item)
		}
	}
	sort.Slice(same, func(i, j int) bool { return same[i].ID < same[j].ID })
	return domain.RankNearby(same, name), nil
}

// CountLowConfidence counts unverified automatic items below threshold.
func (s *KnowledgeStore) CountLowConfidence(_ context.Context, projectID string, threshold float64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		if item.ProjectID == projectID && item.IsLowConfidence(threshold) {
			n++
		}
	}
	return n, nil
}

// AppendDecision stores one arbitration decision.
func (s *KnowledgeStore) AppendDecision(_ context.Context, entry domain.MergeAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, entry)
	return nil
}

// ListDecisions returns a project's decisions, newest first.
func (s *KnowledgeStore) ListDecisions(_ context.Context, projectID string, limit int) ([]domain.MergeAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MergeAuditEntry
	for i := len(s.decisions) - 1; i >= 0; i-- {
		if s.decisions[i].ProjectID != projectID {
			continue
		}
		out = append(out, s.decisions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
