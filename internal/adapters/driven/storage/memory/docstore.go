package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

var _ driven.DocumentStore = (*DocumentStore)(nil)

type location struct{ project, uri string }

// DocumentStore mirrors the sqlite store's validation and ordering so service
// tests behave the same against either.
type DocumentStore struct {
	mu    sync.RWMutex
	byID  map[string]domain.Document
	byURI map[location]string
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		byID:  make(map[string]domain.Document),
		byURI: make(map[location]string),
	}
}

func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" || doc.ProjectID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[doc.ID]; ok && old.URI != "" {
		delete(s.byURI, location{old.ProjectID, old.URI})
	}
	s.byID[doc.ID] = *doc
	if doc.URI != "" {
		s.byURI[location{doc.ProjectID, doc.URI}] = doc.ID
	}
	return nil
}

func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.byID[id]; ok {
		return &doc, nil
	}
	return nil, domain.ErrNotFound
}

func (s *DocumentStore) GetDocumentByURI(_ context.Context, projectID, uri string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byURI[location{projectID, uri}]; ok {
		doc := s.byID[id]
		return &doc, nil
	}
	return nil, domain.ErrNotFound
}

func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.byID, id)
	if doc.URI != "" {
		delete(s.byURI, location{doc.ProjectID, doc.URI})
	}
	return nil
}

// ListDocuments orders by creation time, then ID.
func (s *DocumentStore) ListDocuments(_ context.Context, projectID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, doc := range s.byID {
		if doc.ProjectID == projectID {
			docs = append(docs, doc)
		}
	}
	slices.SortFunc(docs, func(a, b domain.Document) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return docs, nil
}

func (s *DocumentStore) ListProjects(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projects := []string{}
	for _, doc := range s.byID {
		projects = append(projects, doc.ProjectID)
	}
	slices.Sort(projects)
	return slices.Compact(projects), nil
}
