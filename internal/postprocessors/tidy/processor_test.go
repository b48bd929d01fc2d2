package tidy

import (
	"context"
	"testing"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

func TestProcessor_Name(t *testing.T) {
	if got := New().Name(); got != "tidy" {
		t.Errorf("expected name 'tidy', got %q", got)
	}
}

func TestProcessor_Process(t *testing.T) {
	chunks := []domain.Chunk{
		{ID: "a", Content: "  First paragraph.\n\n\n\n  \nSecond.  ", Index: 0},
		{ID: "b", Content: " \n\t ", Index: 1},
		{ID: "c", Content: "Third.", Index: 2},
	}

	got, err := New().Process(context.Background(), &domain.Document{ID: "d"}, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].Content != "First paragraph.\n\nSecond." {
		t.Errorf("unexpected content %q", got[0].Content)
	}
	if got[1].ID != "c" || got[1].Index != 1 {
		t.Errorf("expected chunk c re-indexed to 1, got %s at %d", got[1].ID, got[1].Index)
	}
}

func TestProcessor_Process_Nil(t *testing.T) {
	got, err := New().Process(context.Background(), &domain.Document{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
}
