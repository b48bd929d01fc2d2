package postprocessors

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/postprocessors/chunker"
	"github.com/custodia-labs/lorekeeper/internal/postprocessors/tidy"
)

// stage is a scripted PostProcessor that records what it was given.
type stage struct {
	name  string
	fn    func([]domain.Chunk) []domain.Chunk
	err   error
	saw   []domain.Chunk
	calls int
}

func (s *stage) Name() string { return s.name }

func (s *stage) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	s.calls++
	s.saw = chunks
	if s.err != nil {
		return nil, s.err
	}
	if s.fn == nil {
		return chunks, nil
	}
	return s.fn(chunks), nil
}

func scene(text string) *domain.Document {
	return &domain.Document{ID: "ch-1", ProjectID: "novel", Content: text}
}

func TestPipeline_StagesRunInOrder(t *testing.T) {
	split := &stage{name: "split", fn: func([]domain.Chunk) []domain.Chunk {
		return []domain.Chunk{{Content: "Mara lit the lamp."}, {Content: "The harbour was dark."}}
	}}
	rest := &stage{name: "drop-first", fn: func(c []domain.Chunk) []domain.Chunk { return c[1:] }}
	p := NewPipeline(split, rest)

	chunks, err := p.Process(context.Background(), scene("ignored"))
	require.NoError(t, err)

	assert.Nil(t, split.saw, "first stage starts from nothing")
	assert.Len(t, rest.saw, 2)
	require.Len(t, chunks, 1)
	assert.Equal(t, "The harbour was dark.", chunks[0].Content)
	assert.Equal(t, "ch-1", chunks[0].DocumentID, "chunks are stamped with the document")
	assert.Equal(t, []string{"split", "drop-first"}, p.Stages())
	assert.Equal(t, "split > drop-first", p.String())
}

func TestPipeline_NoStages(t *testing.T) {
	chunks, err := NewPipeline().Process(context.Background(), scene("text"))
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Empty(t, NewPipeline().String())
}

func TestPipeline_NilDocument(t *testing.T) {
	_, err := NewPipeline(&stage{name: "x"}).Process(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPipeline_StageErrorStops(t *testing.T) {
	failing := &stage{name: "broken", err: assert.AnError}
	after := &stage{name: "after"}

	_, err := NewPipeline(failing, after).Process(context.Background(), scene("text"))
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "broken stage on ch-1")
	assert.Zero(t, after.calls)
}

func TestPipeline_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	first := &stage{name: "first"}

	_, err := NewPipeline(first).Process(ctx, scene("text"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, first.calls)
}

func TestPipeline_ChunkerThenTidy(t *testing.T) {
	text := "Mara lit the lamp.\n\n\n\n\nThe harbour was dark and the boats were still.   "
	p := NewPipeline(chunker.New(chunker.WithChunkSize(30), chunker.WithOverlap(0)), tidy.New())

	chunks, err := p.Process(context.Background(), scene(text))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.Content)
		assert.Equal(t, strings.TrimSpace(c.Content), c.Content)
		assert.NotContains(t, c.Content, "\n\n\n")
	}
}
