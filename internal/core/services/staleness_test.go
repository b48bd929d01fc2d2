package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// brokenFingerprints implements driven.FingerprintStore and always fails.
type brokenFingerprints struct{}

var _ driven.FingerprintStore = brokenFingerprints{}

func (brokenFingerprints) GetFingerprint(context.Context, string) (*domain.Fingerprint, error) {
	return nil, errors.New("database is locked")
}

func (brokenFingerprints) ListFingerprints(context.Context, string) (map[string]domain.Fingerprint, error) {
	return nil, errors.New("database is locked")
}

func (brokenFingerprints) SaveFingerprints(context.Context, []domain.Fingerprint) error {
	return errors.New("database is locked")
}

func seedDocuments(t *testing.T, store *memory.DocumentStore, base time.Time, contents map[string]string) {
	t.Helper()
	i := 0
	for _, id := range []string{"ch1", "ch2", "ch3", "notes"} {
		content, ok := contents[id]
		if !ok {
			continue
		}
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveDocument(context.Background(), &domain.Document{
			ID: id, ProjectID: "novel", Content: content, CreatedAt: at, UpdatedAt: at,
		}))
		i++
	}
}

func TestStalenessService_Detect(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	docs := memory.NewDocumentStore()
	fps := memory.NewFingerprintStore()
	seedDocuments(t, docs, base, map[string]string{
		"ch1":   "Unchanged chapter.",
		"ch2":   "Edited chapter, new ending.",
		"ch3":   "Never analysed.",
		"notes": "  ",
	})
	require.NoError(t, fps.SaveFingerprints(ctx, []domain.Fingerprint{
		{DocumentID: "ch1", ProjectID: "novel", Hash: domain.ContentHash("  Unchanged chapter.\n"), ProcessedAt: base.Add(time.Hour)},
		{DocumentID: "ch2", ProjectID: "novel", Hash: domain.ContentHash("Edited chapter."), ProcessedAt: base.Add(time.Hour)},
	}))

	report, err := NewStalenessService(docs, fps).Detect(ctx, "novel")
	require.NoError(t, err)
	assert.Equal(t, domain.StalenessKnown, report.Status)
	assert.Equal(t, []string{"ch2", "ch3"}, report.DocumentIDs)
	assert.Equal(t, 2, report.Count)
	assert.True(t, report.NeedsProcessing())
}

func TestStalenessService_TouchedAfterProcessing(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	docs := memory.NewDocumentStore()
	fps := memory.NewFingerprintStore()
	seedDocuments(t, docs, base, map[string]string{"ch1": "Same words."})
	require.NoError(t, fps.SaveFingerprints(ctx, []domain.Fingerprint{
		{DocumentID: "ch1", ProjectID: "novel", Hash: domain.ContentHash("Same words."), ProcessedAt: base.Add(-time.Minute)},
	}))

	report, err := NewStalenessService(docs, fps).Detect(ctx, "novel")
	require.NoError(t, err)
	assert.Equal(t, []string{"ch1"}, report.DocumentIDs)
}

func TestStalenessService_EmptyProject(t *testing.T) {
	report, err := NewStalenessService(memory.NewDocumentStore(), memory.NewFingerprintStore()).
		Detect(context.Background(), "novel")
	require.NoError(t, err)
	assert.NotNil(t, report.DocumentIDs)
	assert.Zero(t, report.Count)
	assert.False(t, report.NeedsProcessing())
}

func TestStalenessService_UnreadableFingerprintsAreUnknown(t *testing.T) {
	docs := memory.NewDocumentStore()
	seedDocuments(t, docs, time.Now(), map[string]string{
		"ch1":   "One.",
		"ch2":   "Two.",
		"notes": "",
	})

	report, err := NewStalenessService(docs, brokenFingerprints{}).Detect(context.Background(), "novel")
	require.NoError(t, err)
	assert.Equal(t, domain.StalenessUnknown, report.Status)
	assert.Equal(t, []string{"ch1", "ch2"}, report.DocumentIDs)
	assert.Contains(t, report.Reason, domain.ErrFingerprintStoreUnavailable.Error())
	assert.Contains(t, report.Reason, "database is locked")
	assert.True(t, report.NeedsProcessing())
}

func TestJobService_StatusWithUnreadableFingerprints(t *testing.T) {
	f := newJobFixture(t)
	svc := NewJobService(
		f.jobs, f.docs, f.knowledge, f.committer, nil, f.gateway,
		NewStalenessService(f.docs, brokenFingerprints{}),
		NewArbiterService(nil, f.knowledge),
		domain.DefaultAppSettings().Pipeline,
	)

	report, err := svc.Status(context.Background(), "novel")
	require.NoError(t, err)
	assert.True(t, report.StalenessUnknown)
	assert.True(t, report.HasUnanalyzedContent)
	assert.Equal(t, 2, report.UnanalyzedChapterCount)
}
