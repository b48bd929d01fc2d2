package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ensure ChangeApplicatorService implements the interface.
var _ driving.ChangeApplicator = (*ChangeApplicatorService)(nil)

// ChangeApplicatorService reverts rejected changes on an enhanced text.
//
// Apply must be given the enhanced snapshot the records were computed from.
// Running it again on its own output is not supported: every rejected span is
// checked against the buffer first, and a mismatch fails the whole call with
// domain.ErrInvalidPositionRange instead of splicing at stale offsets.
type ChangeApplicatorService struct{}

// NewChangeApplicatorService creates a new change applicator.
func NewChangeApplicatorService() *ChangeApplicatorService {
	return &ChangeApplicatorService{}
}

// Apply returns enhanced with every rejected change replaced by its original
// wording. Accepted and pending changes are already part of enhanced.
func (s *ChangeApplicatorService) Apply(enhanced string, changes []domain.ChangeRecord) (string, error) {
	rejected := make([]domain.ChangeRecord, 0, len(changes))
	for _, c := range changes {
		if c.Decision == domain.DecisionRejected {
			rejected = append(rejected, c)
		}
	}
	if len(rejected) == 0 {
		return enhanced, nil
	}

	// Later spans first: a replacement only shifts text after its own start,
	// so every remaining offset stays valid.
	sort.SliceStable(rejected, func(i, j int) bool {
		return rejected[i].Enhanced.Start > rejected[j].Enhanced.Start
	})

	limit := len(enhanced)
	for _, c := range rejected {
		span := c.Enhanced
		if span.Start < 0 || span.End < span.Start || span.End > len(enhanced) {
			return "", fmt.Errorf("%w: change %s [%d,%d) outside text of length %d",
				domain.ErrInvalidPositionRange, c.ID, span.Start, span.End, len(enhanced))
		}
		if span.End > limit {
			return "", fmt.Errorf("%w: change %s overlaps a later change", domain.ErrInvalidPositionRange, c.ID)
		}
		if enhanced[span.Start:span.End] != c.EnhancedText {
			return "", fmt.Errorf("%w: change %s does not match the text at [%d,%d)",
				domain.ErrInvalidPositionRange, c.ID, span.Start, span.End)
		}
		limit = span.Start
	}

	buf := enhanced
	for _, c := range rejected {
		var b strings.Builder
		b.Grow(len(buf) - c.Enhanced.Len() + len(c.OriginalText))
		b.WriteString(buf[:c.Enhanced.Start])
		b.WriteString(c.OriginalText)
		b.WriteString(buf[c.Enhanced.End:])
		buf = b.String()
	}
	return buf, nil
}
