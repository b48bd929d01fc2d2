package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// Ensure StalenessService implements the interface.
var _ driving.StalenessDetector = (*StalenessService)(nil)

// StalenessService compares documents against their stored fingerprints.
type StalenessService struct {
	docStore         driven.DocumentStore
	fingerprintStore driven.FingerprintStore
}

// NewStalenessService creates a new staleness detector.
func NewStalenessService(docStore driven.DocumentStore, fingerprintStore driven.FingerprintStore) *StalenessService {
	return &StalenessService{
		docStore:         docStore,
		fingerprintStore: fingerprintStore,
	}
}

// Detect returns the project's stale documents in document order.
//
// When fingerprints cannot be read the report is StalenessUnknown and lists
// every eligible document, so a caller that ignores the status still
// reprocesses everything rather than nothing.
func (s *StalenessService) Detect(ctx context.Context, projectID string) (*domain.StalenessReport, error) {
	docs, err := s.docStore.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	report := &domain.StalenessReport{
		ProjectID:   projectID,
		Status:      domain.StalenessKnown,
		DocumentIDs: []string{},
	}

	fps, err := s.fingerprintStore.ListFingerprints(ctx, projectID)
	if err != nil {
		logger.Warn("staleness: fingerprints unavailable for %s: %v", projectID, err)
		report.Status = domain.StalenessUnknown
		report.Reason = fmt.Errorf("%w: %v", domain.ErrFingerprintStoreUnavailable, err).Error()
		for _, doc := range docs {
			if doc.IsEligible() {
				report.DocumentIDs = append(report.DocumentIDs, doc.ID)
			}
		}
		report.Count = len(report.DocumentIDs)
		return report, nil
	}

	for _, doc := range docs {
		var fp *domain.Fingerprint
		if stored, ok := fps[doc.ID]; ok {
			fp = &stored
		}
		if domain.IsStale(doc, fp) {
			report.DocumentIDs = append(report.DocumentIDs, doc.ID)
		}
	}
	report.Count = len(report.DocumentIDs)

	logger.Debug("staleness: %s has %d of %d documents stale", projectID, report.Count, len(docs))
	return report, nil
}
