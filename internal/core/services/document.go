package services

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService lists project documents together with their analysis state.
type DocumentService struct {
	docStore     driven.DocumentStore
	fingerprints driven.FingerprintStore
	open         func(path string) error
}

// NewDocumentService creates a new document service.
func NewDocumentService(docStore driven.DocumentStore, fingerprints driven.FingerprintStore) *DocumentService {
	return &DocumentService{
		docStore:     docStore,
		fingerprints: fingerprints,
		open:         openPath,
	}
}

// List returns the project's documents in creation order.
func (s *DocumentService) List(ctx context.Context, projectID string) ([]driving.DocumentSummary, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}

	docs, err := s.docStore.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	fps, err := s.fingerprints.ListFingerprints(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing fingerprints: %w", err)
	}

	out := make([]driving.DocumentSummary, len(docs))
	for i, doc := range docs {
		var fp *domain.Fingerprint
		if f, ok := fps[doc.ID]; ok {
			fp = &f
		}
		out[i] = summarise(doc, fp)
	}
	return out, nil
}

// Get returns a document with its full text.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, id)
}

// Details returns a document's analysis information.
func (s *DocumentService) Details(ctx context.Context, id string) (*driving.DocumentDetails, error) {
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	fp, err := s.fingerprints.GetFingerprint(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting fingerprint: %w", err)
	}

	details := &driving.DocumentDetails{
		DocumentSummary: summarise(*doc, fp),
		ProjectID:       doc.ProjectID,
		Hash:            domain.ContentHash(doc.Content),
		Characters:      utf8.RuneCountInString(doc.Content),
		CreatedAt:       doc.CreatedAt,
	}
	if fp != nil {
		details.StoredHash = fp.Hash
		details.AnalysedBy = fp.JobID
	}
	return details, nil
}

// Delete removes a document.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if _, err := s.docStore.GetDocument(ctx, id); err != nil {
		return err
	}
	return s.docStore.DeleteDocument(ctx, id)
}

// Open opens the imported file in the default application. Documents
// created without a file have nothing to open.
func (s *DocumentService) Open(ctx context.Context, id string) error {
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.URI == "" {
		return fmt.Errorf("%w: document %s has no file", domain.ErrInvalidInput, id)
	}
	return s.open(strings.TrimPrefix(doc.URI, "file://"))
}

func summarise(doc domain.Document, fp *domain.Fingerprint) driving.DocumentSummary {
	sum := driving.DocumentSummary{
		ID:        doc.ID,
		Title:     doc.Title,
		URI:       doc.URI,
		Words:     len(strings.Fields(doc.Content)),
		State:     analysisState(doc, fp),
		UpdatedAt: doc.UpdatedAt,
	}
	if fp != nil {
		at := fp.ProcessedAt
		sum.AnalysedAt = &at
	}
	return sum
}

func analysisState(doc domain.Document, fp *domain.Fingerprint) driving.AnalysisState {
	switch {
	case !doc.IsEligible():
		return driving.AnalysisEmpty
	case fp == nil:
		return driving.AnalysisNew
	case domain.IsStale(doc, fp):
		return driving.AnalysisStale
	default:
		return driving.AnalysisCurrent
	}
}

// openPath opens a path using the system default handler.
func openPath(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
