package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

func TestChangeStore_TransitionEnhancement(t *testing.T) {
	store := NewChangeStore()
	ctx := context.Background()
	e := &domain.Enhancement{ID: "e1", DocumentID: "d1", Status: domain.EnhancementProcessing, CreatedAt: time.Now()}
	require.NoError(t, store.SaveEnhancement(ctx, e))

	active, err := store.ListActiveEnhancements(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, store.TransitionEnhancement(ctx, "e1", domain.EnhancementProcessing, domain.EnhancementFailed))
	err = store.TransitionEnhancement(ctx, "e1", domain.EnhancementProcessing, domain.EnhancementCompleted)
	assert.ErrorIs(t, err, domain.ErrStateConflict)

	active, err = store.ListActiveEnhancements(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestChangeStore_Changes(t *testing.T) {
	store := NewChangeStore()
	ctx := context.Background()
	require.NoError(t, store.SaveEnhancement(ctx, &domain.Enhancement{ID: "e1", Status: domain.EnhancementCompleted}))

	changes := []domain.ChangeRecord{
		{ID: "c2", EnhancementID: "e1", Enhanced: domain.Span{Start: 10, End: 12}, Decision: domain.DecisionPending},
		{ID: "c1", EnhancementID: "e1", Enhanced: domain.Span{Start: 0, End: 3}, Decision: domain.DecisionPending},
	}
	require.NoError(t, store.SaveChanges(ctx, changes))

	listed, err := store.ListChanges(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "c1", listed[0].ID)

	require.NoError(t, store.SetDecision(ctx, "c2", domain.DecisionRejected))
	c, err := store.GetChange(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionRejected, c.Decision)

	assert.ErrorIs(t, store.SetDecision(ctx, "missing", domain.DecisionAccepted), domain.ErrNotFound)
}

func TestChangeStore_SaveChanges_UnknownEnhancement(t *testing.T) {
	store := NewChangeStore()
	err := store.SaveChanges(context.Background(), []domain.ChangeRecord{{ID: "c1", EnhancementID: "nope"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChangeStore_UpdateEnhancement_CompareAndSet(t *testing.T) {
	store := NewChangeStore()
	ctx := context.Background()
	e := &domain.Enhancement{ID: "e1", Status: domain.EnhancementProcessing}
	require.NoError(t, store.SaveEnhancement(ctx, e))

	done := *e
	done.Status = domain.EnhancementCompleted
	done.EnhancedText = "better"
	require.NoError(t, store.UpdateEnhancement(ctx, &done, domain.EnhancementProcessing))

	again := done
	again.EnhancedText = "worse"
	assert.ErrorIs(t, store.UpdateEnhancement(ctx, &again, domain.EnhancementProcessing), domain.ErrStateConflict)

	got, err := store.GetEnhancement(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "better", got.EnhancedText)
}

func TestChangeStore_CompleteEnhancement(t *testing.T) {
	store := NewChangeStore()
	ctx := context.Background()
	require.NoError(t, store.SaveEnhancement(ctx, &domain.Enhancement{ID: "e1", Status: domain.EnhancementProcessing}))
	require.NoError(t, store.SaveEnhancement(ctx, &domain.Enhancement{ID: "e2", Status: domain.EnhancementFailed}))
	records := func(enh string) []domain.ChangeRecord {
		return []domain.ChangeRecord{{ID: enh + "-c1", EnhancementID: enh, Decision: domain.DecisionPending}}
	}

	done := domain.Enhancement{ID: "e1", Status: domain.EnhancementCompleted, EnhancedText: "Done."}
	require.NoError(t, store.CompleteEnhancement(ctx, &done, records("e1")))
	got, err := store.GetEnhancement(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.EnhancementCompleted, got.Status)
	listed, err := store.ListChanges(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	late := domain.Enhancement{ID: "e2", Status: domain.EnhancementCompleted}
	assert.ErrorIs(t, store.CompleteEnhancement(ctx, &late, records("e2")), domain.ErrStateConflict)
	listed, err = store.ListChanges(ctx, "e2")
	require.NoError(t, err)
	assert.Empty(t, listed)
}
