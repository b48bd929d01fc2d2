package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

const harbour = "Mara lit the lamp and carried it down to the harbour. " +
	"The boats were still, and the tide had gone out past the breakwater. " +
	"Somewhere beyond the lighthouse a bell rang twice, then stopped."

func chapter(text string) *domain.Document {
	return &domain.Document{ID: "ch-7", ProjectID: "novel", Content: text}
}

func TestNew_Options(t *testing.T) {
	tests := []struct {
		name        string
		opts        []Option
		size, overl int
	}{
		{"defaults", nil, DefaultChunkSize, DefaultChunkOverlap},
		{"custom", []Option{WithChunkSize(500), WithOverlap(50)}, 500, 50},
		{"invalid values ignored", []Option{WithChunkSize(0), WithOverlap(-1)}, DefaultChunkSize, DefaultChunkOverlap},
		{"overlap clamped below size", []Option{WithChunkSize(100), WithOverlap(150)}, 100, 25},
		{"zero overlap allowed", []Option{WithOverlap(0)}, DefaultChunkSize, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.opts...)
			assert.Equal(t, tt.size, p.chunkSize)
			assert.Equal(t, tt.overl, p.overlap)
		})
	}
	assert.Equal(t, "chunker", New().Name())
}

func TestProcess_NothingToChunk(t *testing.T) {
	for _, text := range []string{"", "   \n\t  "} {
		chunks, err := New().Process(context.Background(), chapter(text), nil)
		require.NoError(t, err)
		assert.Empty(t, chunks, "%q", text)
	}
}

func TestProcess_ShortChapterIsOneChunk(t *testing.T) {
	chunks, err := New().Process(context.Background(), chapter(harbour), nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, harbour, c.Content)
	assert.Equal(t, "ch-7", c.DocumentID)
	assert.Zero(t, c.Index)
	assert.NotEmpty(t, c.ID)
}

func TestProcess_WithoutOverlapRebuildsText(t *testing.T) {
	text := strings.Repeat(harbour+"\n\n", 6)
	chunks, err := New(WithChunkSize(120), WithOverlap(0)).Process(context.Background(), chapter(text), nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var rebuilt strings.Builder
	ids := map[string]bool{}
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, len(c.Content), 120)
		assert.False(t, ids[c.ID], "chunk IDs are unique")
		ids[c.ID] = true
		rebuilt.WriteString(c.Content)
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestProcess_BreaksAfterWhitespace(t *testing.T) {
	chunks, err := New(WithChunkSize(60), WithOverlap(0)).Process(context.Background(), chapter(harbour), nil)
	require.NoError(t, err)

	for _, c := range chunks[:len(chunks)-1] {
		last, _ := utf8.DecodeLastRuneInString(c.Content)
		assert.Equal(t, ' ', last, "chunk %d ends mid-word: %q", c.Index, c.Content)
	}
}

func TestProcess_OverlapRepeatsTail(t *testing.T) {
	chunks, err := New(WithChunkSize(80), WithOverlap(20)).Process(context.Background(), chapter(harbour), nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1].Content, chunks[i].Content
		tail := prev[len(prev)-20:]
		assert.True(t, strings.HasPrefix(cur, tail), "chunk %d should start with %q, got %q", i, tail, cur)
	}
	assert.True(t, strings.HasSuffix(harbour, chunks[len(chunks)-1].Content))
}

func TestProcess_KeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("Ærøskøbing—æøå ", 40)
	chunks, err := New(WithChunkSize(17), WithOverlap(5)).Process(context.Background(), chapter(text), nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Content), "chunk %d splits a rune", c.Index)
	}
}

func TestProcess_UnbrokenTextStillAdvances(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks, err := New(WithChunkSize(100), WithOverlap(0)).Process(context.Background(), chapter(text), nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2].Content, 50)
}

func TestProcess_IgnoresIncomingChunks(t *testing.T) {
	stale := []domain.Chunk{{ID: "old", Content: "from an earlier stage"}}
	chunks, err := New().Process(context.Background(), chapter(harbour), stale)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEqual(t, "old", chunks[0].ID)
}

func TestProcess_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(WithChunkSize(50)).Process(ctx, chapter(harbour), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_StableIDs(t *testing.T) {
	text := strings.Repeat(harbour+" ", 5)
	first, err := New(WithChunkSize(90)).Process(context.Background(), chapter(text), nil)
	require.NoError(t, err)
	again, err := New(WithChunkSize(90)).Process(context.Background(), chapter(text), nil)
	require.NoError(t, err)

	require.Equal(t, len(first), len(again))
	for i := range first {
		assert.Equal(t, first[i].ID, again[i].ID)
	}

	other := chapter(text)
	other.ID = "ch-8"
	moved, err := New(WithChunkSize(90)).Process(context.Background(), other, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ID, moved[0].ID)
}
