package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// textPairs are original/enhanced pairs shared by tracker and applicator tests.
var textPairs = []struct {
	name     string
	original string
	enhanced string
}{
	{"scenario", "He walked slow.", "He walked slowly, without hurry."},
	{"insertion at start", "rain fell.", "Cold rain fell."},
	{"deletion at end", "She left. Quickly.", "She left."},
	{"several edits", "The ship was big and it was old and it leaked.", "The vessel was vast, ancient, and it leaked badly."},
	{"whitespace only", "One  two\tthree", "One two three"},
	{"paragraph split", "First line. Second line.", "First line.\n\nSecond line."},
	{"capitalization", "mara ran.", "Mara ran."},
	{"dialogue", "She said hello.", "She said, \"Hello.\""},
	{"unicode", "Café au lait — très bien.", "Café crème — très, très bien!"},
	{"empty original", "", "Something new."},
	{"empty enhanced", "Gone soon.", ""},
	{"repeated tokens", "a a a b a a", "a b a b a"},
}

func TestChangeTracker_Scenario(t *testing.T) {
	tracker := NewChangeTrackerService()

	records, err := tracker.Track("enh-1", "He walked slow.", "He walked slowly, without hurry.")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, domain.ChangeReplacement, rec.Type)
	assert.Equal(t, "slow.", rec.OriginalText)
	assert.Equal(t, "slowly, without hurry.", rec.EnhancedText)
	assert.Equal(t, domain.Span{Start: 10, End: 15}, rec.Original)
	assert.Equal(t, domain.Span{Start: 10, End: 32}, rec.Enhanced)
	assert.Equal(t, "enh-1", rec.EnhancementID)
	assert.Equal(t, domain.DecisionPending, rec.Decision)
	assert.NotEmpty(t, rec.ID)
}

func TestChangeTracker_SpansReproduceSnippets(t *testing.T) {
	tracker := NewChangeTrackerService()

	for _, tt := range textPairs {
		t.Run(tt.name, func(t *testing.T) {
			records, err := tracker.Track("e", tt.original, tt.enhanced)
			require.NoError(t, err)
			require.NotEmpty(t, records)

			prevEnd := -1
			for _, rec := range records {
				assert.Equal(t, rec.OriginalText, tt.original[rec.Original.Start:rec.Original.End])
				assert.Equal(t, rec.EnhancedText, tt.enhanced[rec.Enhanced.Start:rec.Enhanced.End])
				assert.NoError(t, rec.Validate(tt.original, tt.enhanced))
				assert.Equal(t, domain.DecisionPending, rec.Decision)
				assert.Greater(t, rec.Enhanced.Start, prevEnd-1, "records are ordered and disjoint")
				prevEnd = rec.Enhanced.End
			}
		})
	}
}

func TestChangeTracker_IdenticalTexts(t *testing.T) {
	records, err := NewChangeTrackerService().Track("e", "Nothing changed.", "Nothing changed.")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestChangeTracker_CoalescesAdjacentEdits(t *testing.T) {
	records, err := NewChangeTrackerService().Track("e", "a red fox", "a small brown fox")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "red", records[0].OriginalText)
	assert.Equal(t, "small brown", records[0].EnhancedText)
}

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		orig, enh string
		want      domain.ChangeType
	}{
		{"", "new words", domain.ChangeInsertion},
		{"old words", "", domain.ChangeDeletion},
		{"  ", " ", domain.ChangeWhitespace},
		{" ", "\n\n", domain.ChangeStructure},
		{"mara", "Mara", domain.ChangeCapitalization},
		{"ran", "ran!", domain.ChangePunctuation},
		{"hello.", "\"Hello.\"", domain.ChangeDialogue},
		{"walk", "walked", domain.ChangeGrammar},
		{"big", "vast", domain.ChangeStyle},
		{"slow.", "slowly, without hurry.", domain.ChangeReplacement},
	}

	for _, tt := range tests {
		t.Run(tt.orig+"->"+tt.enh, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyChange(tt.orig, tt.enh))
		})
	}
}

func TestTokenize_RoundTrip(t *testing.T) {
	for _, tt := range textPairs {
		for _, text := range []string{tt.original, tt.enhanced} {
			tokens := tokenize(text)
			joined := ""
			for _, tok := range tokens {
				joined += tok
			}
			assert.Equal(t, text, joined)
		}
	}
}

func TestTokenCodec_SkipsSurrogates(t *testing.T) {
	codec := newTokenCodec()
	tokens := make([]string, 0xD800+10)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%d", i)
	}

	runes, err := codec.encode(tokens)
	require.NoError(t, err)
	for i, r := range runes {
		assert.False(t, r >= 0xD800 && r <= 0xDFFF, "rune %x is a surrogate", r)
		if i%5000 == 0 || i > 0xD7F0 {
			assert.Equal(t, tokens[i], codec.decode(r))
		}
	}
}
