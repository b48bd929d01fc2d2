package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure FingerprintStore implements the interface.
var _ driven.FingerprintStore = (*FingerprintStore)(nil)

// FingerprintStore is an in-memory implementation of driven.FingerprintStore.
type FingerprintStore struct {
	mu           sync.RWMutex
	fingerprints map[string]domain.Fingerprint
}

// NewFingerprintStore creates a new in-memory fingerprint store.
func NewFingerprintStore() *FingerprintStore {
	return &FingerprintStore{
		fingerprints: make(map[string]domain.Fingerprint),
	}
}

// GetFingerprint returns the fingerprint for a document, or nil.
func (s *FingerprintStore) GetFingerprint(_ context.Context, documentID string) (*domain.Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.fingerprints[documentID]
	if !ok {
		return nil, nil
	}
	return &fp, nil
}

// ListFingerprints returns a project's fingerprints keyed by document ID.
func (s *FingerprintStore) ListFingerprints(_ context.Context, projectID string) (map[string]domain.Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Fingerprint)
	for id, fp := range s.fingerprints {
		if fp.ProjectID == projectID {
			out[id] = fp
		}
	}
	return out, nil
}

// SaveFingerprints upserts fingerprints.
func (s *FingerprintStore) SaveFingerprints(_ context.Context, fps []domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(fps)
	return nil
}

func (s *FingerprintStore) putLocked(fps []domain.Fingerprint) {
	for _, fp := range fps {
		s.fingerprints[fp.DocumentID] = fp
	}
}
