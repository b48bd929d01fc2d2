// Package tidy cleans chunks before they are sent for extraction.
package tidy

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// blankLines matches runs of three or more line breaks, with any
// whitespace between them.
var blankLines = regexp.MustCompile(`\n[ \t\r]*\n(?:[ \t\r]*\n)+`)

// Processor trims chunks, collapses long runs of blank lines and drops
// chunks left empty. Remaining chunks are re-indexed from zero.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a new tidy processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "tidy"
}

// Process cleans the chunks produced by earlier processors.
func (p *Processor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	out := chunks[:0]
	for _, c := range chunks {
		c.Content = strings.TrimSpace(blankLines.ReplaceAllString(c.Content, "\n\n"))
		if c.Content == "" {
			continue
		}
		c.Index = len(out)
		out = append(out, c)
	}
	return out, nil
}
