// Package chunker cuts prose into overlapping, byte-bounded chunks for
// extraction.
package chunker

import (
	"context"
	"iter"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

const (
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 200
)

// Processor is the first post-processing stage. Chunks end after whitespace
// where possible and never split a rune.
type Processor struct {
	chunkSize int
	overlap   int
}

type Option func(*Processor)

// WithChunkSize ignores values below 1.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap ignores negative values.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New applies opts over the defaults. An overlap that would stop the chunker
// advancing is cut to a quarter of the chunk size.
func New(opts ...Option) *Processor {
	p := &Processor{chunkSize: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(p)
	}
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}
	return p
}

func (p *Processor) Name() string { return "chunker" }

// Process discards incoming chunks and cuts doc.Content afresh. Chunk IDs
// are derived from the document ID and index, so re-chunking unchanged text
// yields the same IDs.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	var chunks []domain.Chunk
	for start, end := range p.spans(doc.Content) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(doc.ID+"#"+strconv.Itoa(i))).String(),
			DocumentID: doc.ID,
			Content:    doc.Content[start:end],
			Index:      i,
		})
	}
	return chunks, nil
}

// spans yields the byte range of each chunk in order.
func (p *Processor) spans(s string) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for start := 0; start < len(s); {
			end := p.cut(s, start)
			if !yield(start, end) || end == len(s) {
				return
			}
			next := runeStart(s, end-p.overlap)
			if next <= start {
				next = end
			}
			start = next
		}
	}
}

// cut returns where the chunk beginning at start ends. It backs off to the
// last whitespace in the second half of the window, and always advances by
// at least one rune.
func (p *Processor) cut(s string, start int) int {
	limit := start + p.chunkSize
	if limit >= len(s) {
		return len(s)
	}
	limit = runeStart(s, limit)

	for i := limit; i > start+p.chunkSize/2; {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		if unicode.IsSpace(r) {
			return i
		}
		i -= size
	}
	if limit > start {
		return limit
	}
	_, size := utf8.DecodeRuneInString(s[start:])
	return start + size
}

// runeStart moves i back onto the first byte of its rune.
func runeStart(s string, i int) int {
	i = max(i, 0)
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
