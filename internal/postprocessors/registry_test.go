package postprocessors

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/postprocessors/chunker"
)

func fixed(name string) Builder {
	return func(domain.PipelineSettings) (driven.PostProcessor, error) {
		return &stage{name: name}, nil
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("tidy", fixed("tidy")))
	require.NoError(t, r.Register("chunker", fixed("chunker")))

	assert.ErrorIs(t, r.Register("tidy", fixed("tidy")), domain.ErrAlreadyExists)
	assert.ErrorIs(t, r.Register("", fixed("x")), domain.ErrInvalidInput)
	assert.ErrorIs(t, r.Register("x", nil), domain.ErrInvalidInput)
	assert.Equal(t, []string{"chunker", "tidy"}, r.Names())
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a", fixed("a")))
	require.NoError(t, r.Register("b", fixed("b")))

	p, err := r.Build([]string{"b", "a"}, domain.PipelineSettings{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, p.Stages())

	_, err = r.Build([]string{"a", "summarise"}, domain.PipelineSettings{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), `"summarise"`)

	_, err = r.Build(nil, domain.PipelineSettings{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_BuilderError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("bad", func(domain.PipelineSettings) (driven.PostProcessor, error) {
		return nil, assert.AnError
	}))

	_, err := r.Build([]string{"bad"}, domain.PipelineSettings{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, []string{"chunker", "tidy"}, Defaults().Names())

	p, err := NewDefaultPipeline(domain.DefaultAppSettings().Pipeline)
	require.NoError(t, err)
	assert.Equal(t, DefaultStages, p.Stages())

	chunks, err := p.Process(context.Background(), scene("A short scene."))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short scene.", chunks[0].Content)
}

func TestBuildChunker(t *testing.T) {
	long := scene(strings.Repeat("word ", 100))

	tests := []struct {
		name     string
		settings domain.PipelineSettings
		chunks   int
	}{
		{"defaults fit in one chunk", domain.PipelineSettings{ChunkOverlap: -1}, 1},
		{"small chunks without overlap", domain.PipelineSettings{ChunkSize: 100, ChunkOverlap: 0}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc, err := buildChunker(tt.settings)
			require.NoError(t, err)
			require.IsType(t, &chunker.Processor{}, proc)

			chunks, err := proc.Process(context.Background(), long, nil)
			require.NoError(t, err)
			assert.Len(t, chunks, tt.chunks)
		})
	}
}
