package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

func newKnowledgeFixture(t *testing.T) (*KnowledgeService, *memory.KnowledgeStore, *domain.KnowledgeItem) {
	t.Helper()
	store := memory.NewKnowledgeStore()
	item := &domain.KnowledgeItem{
		ID:               "k1",
		ProjectID:        "novel",
		Category:         domain.CategoryCharacter,
		Name:             "Mara",
		Description:      "A smuggler",
		Confidence:       0.55,
		ExtractionMethod: domain.ExtractionLLMInferred,
	}
	require.NoError(t, store.SaveItem(context.Background(), item))
	return NewKnowledgeService(store, store), store, item
}

func TestKnowledgeService_Create(t *testing.T) {
	svc, _, _ := newKnowledgeFixture(t)

	item, err := svc.Create(context.Background(), "novel", domain.CategoryTheme, "  Debt ", "What is owed")
	require.NoError(t, err)
	assert.Equal(t, "Debt", item.Name)
	assert.Equal(t, 1.0, item.Confidence)
	assert.Equal(t, domain.ExtractionUserInput, item.ExtractionMethod)

	_, err = svc.Create(context.Background(), "novel", "gossip", "x", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Create(context.Background(), "novel", domain.CategoryTheme, " ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestKnowledgeService_Edit_UpgradesToUserCorrection(t *testing.T) {
	svc, store, _ := newKnowledgeFixture(t)
	desc := "A smuggler captain"

	item, err := svc.Edit(context.Background(), "k1", domain.KnowledgeEdit{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, 1.0, item.Confidence)
	assert.Equal(t, domain.ExtractionUserCorrection, item.ExtractionMethod)

	stored, err := store.GetItem(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, desc, stored.Description)
}

func TestKnowledgeService_Edit_NoChangeKeepsItem(t *testing.T) {
	svc, _, original := newKnowledgeFixture(t)
	same := original.Description

	item, err := svc.Edit(context.Background(), "k1", domain.KnowledgeEdit{Description: &same})
	require.NoError(t, err)
	assert.Equal(t, domain.ExtractionLLMInferred, item.ExtractionMethod)
	assert.Equal(t, 0.55, item.Confidence)
}

func TestKnowledgeService_Edit_Validation(t *testing.T) {
	svc, _, _ := newKnowledgeFixture(t)
	bad := domain.Category("gossip")
	empty := "  "

	_, err := svc.Edit(context.Background(), "k1", domain.KnowledgeEdit{Category: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Edit(context.Background(), "k1", domain.KnowledgeEdit{Name: &empty})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Edit(context.Background(), "nope", domain.KnowledgeEdit{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKnowledgeService_FlagAndVerify(t *testing.T) {
	svc, _, _ := newKnowledgeFixture(t)
	ctx := context.Background()

	item, err := svc.Flag(ctx, "k1", true)
	require.NoError(t, err)
	assert.True(t, item.IsFlagged)

	flagged, err := svc.List(ctx, "novel", driven.KnowledgeFilter{FlaggedOnly: true})
	require.NoError(t, err)
	assert.Len(t, flagged, 1)

	item, err = svc.Verify(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, item.IsVerified)
	assert.False(t, item.IsFlagged)
	assert.False(t, item.IsLowConfidence(0.6))
}

func TestKnowledgeService_DeleteAndDecisions(t *testing.T) {
	svc, store, _ := newKnowledgeFixture(t)
	ctx := context.Background()
	require.NoError(t, store.AppendDecision(ctx, domain.MergeAuditEntry{ID: "a1", ProjectID: "novel"}))

	decisions, err := svc.Decisions(ctx, "novel", 10)
	require.NoError(t, err)
	assert.Len(t, decisions, 1)

	require.NoError(t, svc.Delete(ctx, "k1"))
	_, err = svc.Get(ctx, "k1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKnowledgeService_List_UnknownCategory(t *testing.T) {
	svc, _, _ := newKnowledgeFixture(t)
	_, err := svc.List(context.Background(), "novel", driven.KnowledgeFilter{Category: "gossip"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
