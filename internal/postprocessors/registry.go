package postprocessors

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Builder constructs a stage from the pipeline settings.
type Builder func(domain.PipelineSettings) (driven.PostProcessor, error)

// Registry maps stage names to builders.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder. Names are unique.
func (r *Registry) Register(name string, b Builder) error {
	if name == "" || b == nil {
		return fmt.Errorf("%w: stage needs a name and a builder", domain.ErrInvalidInput)
	}
	if _, dup := r.builders[name]; dup {
		return fmt.Errorf("%w: stage %q", domain.ErrAlreadyExists, name)
	}
	r.builders[name] = b
	return nil
}

// Build assembles a pipeline from the named stages, in order.
func (r *Registry) Build(stages []string, settings domain.PipelineSettings) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: pipeline has no stages", domain.ErrInvalidInput)
	}

	procs := make([]driven.PostProcessor, 0, len(stages))
	for _, name := range stages {
		b, ok := r.builders[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown stage %q (have %v)", domain.ErrInvalidInput, name, r.Names())
		}
		proc, err := b(settings)
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", name, err)
		}
		procs = append(procs, proc)
	}
	return NewPipeline(procs...), nil
}

// Names returns the registered stage names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
