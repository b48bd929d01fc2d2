package domain

import (
	"sort"
	"strings"
	"time"
)

// Category classifies a knowledge item.
type Category string

// Knowledge categories.
const (
	CategoryCharacter     Category = "character"
	CategoryRelationship  Category = "relationship"
	CategoryPlotThread    Category = "plot_thread"
	CategoryTimelineEvent Category = "timeline_event"
	CategoryWorldBuilding Category = "world_building"
	CategoryTheme         Category = "theme"
)

// IsValid returns true if the category is recognised.
func (c Category) IsValid() bool {
	switch c {
	case CategoryCharacter, CategoryRelationship, CategoryPlotThread,
		CategoryTimelineEvent, CategoryWorldBuilding, CategoryTheme:
		return true
	default:
		return false
	}
}

// AllCategories returns every knowledge category.
func AllCategories() []Category {
	return []Category{
		CategoryCharacter,
		CategoryRelationship,
		CategoryPlotThread,
		CategoryTimelineEvent,
		CategoryWorldBuilding,
		CategoryTheme,
	}
}

// ExtractionMethod records how a knowledge item came to exist.
type ExtractionMethod string

// Extraction methods.
const (
	ExtractionLLMDirect      ExtractionMethod = "llm_direct"
	ExtractionLLMInferred    ExtractionMethod = "llm_inferred"
	ExtractionUserInput      ExtractionMethod = "user_input"
	ExtractionUserCorrection ExtractionMethod = "user_correction"
)

// IsUserOwned is true for items a human created or corrected.
func (m ExtractionMethod) IsUserOwned() bool {
	return m == ExtractionUserInput || m == ExtractionUserCorrection
}

// KnowledgeItem is one fact about the story.
type KnowledgeItem struct {
	ID               string
	ProjectID        string
	Category         Category
	Name             string
	Description      string
	Confidence       float64
	IsFlagged        bool
	IsVerified       bool
	ExtractionMethod ExtractionMethod
	Evidence         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// KnowledgeEdit carries the fields a human changed. Nil fields are untouched.
type KnowledgeEdit struct {
	Name        *string
	Description *string
	Category    *Category
	Evidence    *string
}

// ApplyUserEdit applies a human edit. Any edited field upgrades the item to
// confidence 1.0 and user_correction, and nothing downgrades it afterwards.
func (k *KnowledgeItem) ApplyUserEdit(edit KnowledgeEdit, now time.Time) bool {
	changed := false
	if edit.Name != nil && *edit.Name != k.Name {
		k.Name = *edit.Name
		changed = true
	}
	if edit.Description != nil && *edit.Description != k.Description {
		k.Description = *edit.Description
		changed = true
	}
	if edit.Category != nil && *edit.Category != k.Category {
		k.Category = *edit.Category
		changed = true
	}
	if edit.Evidence != nil && *edit.Evidence != k.Evidence {
		k.Evidence = *edit.Evidence
		changed = true
	}
	if !changed {
		return false
	}
	k.Confidence = 1.0
	k.ExtractionMethod = ExtractionUserCorrection
	k.UpdatedAt = now
	return true
}

// IsLowConfidence reports whether the item should be surfaced for review.
func (k KnowledgeItem) IsLowConfidence(threshold float64) bool {
	return !k.IsVerified && !k.ExtractionMethod.IsUserOwned() && k.Confidence < threshold
}

// ClampConfidence limits c to [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// NamesResemble reports whether two fact names plausibly refer to the same
// thing: equal ignoring case, or one contained in the other as whole words
// ("Mara" and "Captain Mara").
func NamesResemble(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	words := strings.Fields(long)
	needle := strings.Fields(short)
	for i := 0; i+len(needle) <= len(words); i++ {
		match := true
		for j := range needle {
			if words[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// RankNearby keeps the items whose names resemble name and orders them
// closest first: exact matches, then by length difference, then by name.
func RankNearby(items []KnowledgeItem, name string) []KnowledgeItem {
	want := strings.ToLower(strings.TrimSpace(name))
	var out []KnowledgeItem
	for _, item := range items {
		if NamesResemble(item.Name, name) {
			out = append(out, item)
		}
	}
	distance := func(item KnowledgeItem) int {
		got := strings.ToLower(strings.TrimSpace(item.Name))
		if got == want {
			return -1
		}
		d := len(got) - len(want)
		if d < 0 {
			d = -d
		}
		return d
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := distance(out[i]), distance(out[j])
		if di != dj {
			return di < dj
		}
		return out[i].Name < out[j].Name
	})
	return out
}
