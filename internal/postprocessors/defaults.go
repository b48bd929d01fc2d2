package postprocessors

import (
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/postprocessors/chunker"
	"github.com/custodia-labs/lorekeeper/internal/postprocessors/tidy"
)

// DefaultStages chunks prose, then tidies the chunks.
var DefaultStages = []string{"chunker", "tidy"}

// Defaults returns a registry holding the built-in stages.
func Defaults() *Registry {
	r := NewRegistry()
	_ = r.Register("chunker", buildChunker)
	_ = r.Register("tidy", func(domain.PipelineSettings) (driven.PostProcessor, error) {
		return tidy.New(), nil
	})
	return r
}

// NewDefaultPipeline builds the pipeline used before extraction.
func NewDefaultPipeline(settings domain.PipelineSettings) (*Pipeline, error) {
	return Defaults().Build(DefaultStages, settings)
}

// buildChunker leaves unset sizes at the chunker defaults. A negative
// overlap is treated as unset; zero disables overlap.
func buildChunker(settings domain.PipelineSettings) (driven.PostProcessor, error) {
	var opts []chunker.Option
	if settings.ChunkSize > 0 {
		opts = append(opts, chunker.WithChunkSize(settings.ChunkSize))
	}
	if settings.ChunkOverlap >= 0 {
		opts = append(opts, chunker.WithOverlap(settings.ChunkOverlap))
	}
	return chunker.New(opts...), nil
}
