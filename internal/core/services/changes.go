package services

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// Ensure ChangeTrackerService implements the interface.
var _ driving.ChangeTracker = (*ChangeTrackerService)(nil)

// maxDiffTokens bounds the distinct tokens one diff can map to runes.
const maxDiffTokens = unicode.MaxRune - 0x800

// changeConfidence is how sure the tracker is about each classification.
var changeConfidence = map[domain.ChangeType]float64{
	domain.ChangeWhitespace:     0.95,
	domain.ChangeCapitalization: 0.95,
	domain.ChangePunctuation:    0.9,
	domain.ChangeInsertion:      0.9,
	domain.ChangeDeletion:       0.9,
	domain.ChangeGrammar:        0.85,
	domain.ChangeDialogue:       0.8,
	domain.ChangeStructure:      0.8,
	domain.ChangeReplacement:    0.75,
	domain.ChangeStyle:          0.7,
}

// ChangeTrackerService diffs an original text against its enhancement.
//
// Texts are split into word and whitespace tokens, each distinct token is
// mapped to one rune and the rune strings are diffed, so edits always land on
// token boundaries. Adjacent deletions and insertions become one record.
type ChangeTrackerService struct {
	dmp *diffmatchpatch.DiffMatchPatch
	now func() time.Time
}

// NewChangeTrackerService creates a new change tracker.
func NewChangeTrackerService() *ChangeTrackerService {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &ChangeTrackerService{dmp: dmp, now: time.Now}
}

// Track returns the pending change records turning original into enhanced,
// ordered by position.
func (s *ChangeTrackerService) Track(enhancementID, original, enhanced string) ([]domain.ChangeRecord, error) {
	if original == enhanced {
		return nil, nil
	}

	origTokens := tokenize(original)
	enhTokens := tokenize(enhanced)
	codec := newTokenCodec()
	origRunes, err := codec.encode(origTokens)
	if err != nil {
		return nil, err
	}
	enhRunes, err := codec.encode(enhTokens)
	if err != nil {
		return nil, err
	}

	diffs := s.dmp.DiffMainRunes(origRunes, enhRunes, false)
	diffs = s.dmp.DiffCleanupSemantic(diffs)

	regions := collectRegions(diffs, codec)
	now := s.now()
	records := make([]domain.ChangeRecord, 0, len(regions))
	for _, r := range regions {
		origText := original[r.orig.Start:r.orig.End]
		enhText := enhanced[r.enh.Start:r.enh.End]
		kind := classifyChange(origText, enhText)

		rec, err := domain.NewChangeRecord(uuid.New().String(), kind, original, enhanced, r.orig, r.enh, changeConfidence[kind])
		if err != nil {
			return nil, fmt.Errorf("change at %d: %w", r.enh.Start, err)
		}
		rec.EnhancementID = enhancementID
		rec.CreatedAt = now
		records = append(records, rec)
	}
	return records, nil
}

// tokenize splits text into alternating runs of whitespace and non-whitespace.
// Concatenating the tokens reproduces text exactly.
func tokenize(text string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if i > start && space != inSpace {
			tokens = append(tokens, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// tokenCodec assigns one rune per distinct token.
type tokenCodec struct {
	ids    map[string]rune
	tokens []string
}

func newTokenCodec() *tokenCodec {
	return &tokenCodec{ids: make(map[string]rune)}
}

func (c *tokenCodec) encode(tokens []string) ([]rune, error) {
	out := make([]rune, len(tokens))
	for i, tok := range tokens {
		r, ok := c.ids[tok]
		if !ok {
			if len(c.tokens) >= maxDiffTokens {
				return nil, fmt.Errorf("%w: too many distinct tokens to diff", domain.ErrInvalidInput)
			}
			r = rune(len(c.tokens) + 1)
			// Skip the surrogate range, which is not valid in strings.
			if r >= 0xD800 {
				r += 0x800
			}
			c.ids[tok] = r
			c.tokens = append(c.tokens, tok)
		}
		out[i] = r
	}
	return out, nil
}

func (c *tokenCodec) decode(r rune) string {
	idx := int(r) - 1
	if r >= 0xD800+0x800 {
		idx -= 0x800
	}
	return c.tokens[idx]
}

// byteLen is the length in bytes of the tokens encoded in runes.
func (c *tokenCodec) byteLen(runes string) (n int, blank bool) {
	blank = true
	for _, r := range runes {
		tok := c.decode(r)
		n += len(tok)
		if strings.TrimSpace(tok) != "" {
			blank = false
		}
	}
	return n, blank
}

// region is one coalesced edit in both coordinate spaces.
type region struct {
	orig domain.Span
	enh  domain.Span
}

// collectRegions walks the diff, merging every run of deletions and
// insertions into one region. Whitespace-only equalities sandwiched between
// edits are absorbed so "a b" -> "c d" is one change rather than two.
func collectRegions(diffs []diffmatchpatch.Diff, codec *tokenCodec) []region {
	var regions []region
	var cur *region
	origPos, enhPos := 0, 0

	for i, d := range diffs {
		n, blank := codec.byteLen(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			if cur != nil && blank && i+1 < len(diffs) {
				cur.orig.End += n
				cur.enh.End += n
			} else if cur != nil {
				regions = append(regions, *cur)
				cur = nil
			}
			origPos += n
			enhPos += n
			continue
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &region{orig: domain.Span{Start: origPos, End: origPos}, enh: domain.Span{Start: enhPos, End: enhPos}}
			}
			origPos += n
			cur.orig.End = origPos
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &region{orig: domain.Span{Start: origPos, End: origPos}, enh: domain.Span{Start: enhPos, End: enhPos}}
			}
			enhPos += n
			cur.enh.End = enhPos
		}
	}
	if cur != nil {
		regions = append(regions, *cur)
	}
	return regions
}

// classifyChange names the kind of edit between two snippets.
func classifyChange(orig, enh string) domain.ChangeType {
	origBlank := strings.TrimSpace(orig) == ""
	enhBlank := strings.TrimSpace(enh) == ""

	switch {
	case origBlank && enhBlank:
		if strings.Count(orig, "\n") != strings.Count(enh, "\n") {
			return domain.ChangeStructure
		}
		return domain.ChangeWhitespace
	case origBlank:
		return domain.ChangeInsertion
	case enhBlank:
		return domain.ChangeDeletion
	}

	origWords := strings.Fields(orig)
	enhWords := strings.Fields(enh)
	if strings.Join(origWords, " ") == strings.Join(enhWords, " ") {
		if strings.Count(orig, "\n") != strings.Count(enh, "\n") {
			return domain.ChangeStructure
		}
		return domain.ChangeWhitespace
	}
	if strings.EqualFold(orig, enh) {
		return domain.ChangeCapitalization
	}

	origBare, enhBare := stripPunctuation(orig), stripPunctuation(enh)
	if hasQuote(orig) != hasQuote(enh) {
		return domain.ChangeDialogue
	}
	if strings.EqualFold(origBare, enhBare) {
		if countQuotes(orig) != countQuotes(enh) {
			return domain.ChangeDialogue
		}
		return domain.ChangePunctuation
	}

	if len(origWords) == len(enhWords) {
		if sharesStems(origWords, enhWords) {
			return domain.ChangeGrammar
		}
		if len(origWords) <= 3 {
			return domain.ChangeStyle
		}
	}
	return domain.ChangeReplacement
}

func stripPunctuation(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	}), " ")
}

func isQuote(r rune) bool {
	switch r {
	case '"', '“', '”', '«', '»':
		return true
	default:
		return false
	}
}

func hasQuote(s string) bool {
	return strings.IndexFunc(s, isQuote) >= 0
}

func countQuotes(s string) int {
	n := 0
	for _, r := range s {
		if isQuote(r) {
			n++
		}
	}
	return n
}

// sharesStems reports whether every differing word pair shares a stem of at
// least three letters, as "walk" and "walked" do.
func sharesStems(a, b []string) bool {
	for i := range a {
		x := strings.ToLower(stripPunctuation(a[i]))
		y := strings.ToLower(stripPunctuation(b[i]))
		if x == y {
			continue
		}
		if commonPrefix(x, y) < 3 {
			return false
		}
	}
	return true
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
