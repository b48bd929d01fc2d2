// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// ItemList displays knowledge items in a navigable list.
type ItemList struct {
	items        []domain.KnowledgeItem
	selected     int
	styles       *styles.Styles
	lowThreshold float64
	width        int
	height       int
}

// NewItemList creates a new item list component.
func NewItemList(s *styles.Styles, lowThreshold float64) *ItemList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &ItemList{
		styles:       s,
		lowThreshold: lowThreshold,
		width:        80,
		height:       10,
	}
}

// View renders the list.
func (r *ItemList) View() string {
	if len(r.items) == 0 {
		return r.styles.Muted.Render("Nothing to review")
	}

	// Each item takes two lines.
	visible := (r.height - 2) / 2
	if visible < 1 {
		visible = 1
	}

	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := start + visible
	if end > len(r.items) {
		end = len(r.items)
	}

	lines := make([]string, 0, (end-start)*2)
	for i := start; i < end; i++ {
		lines = append(lines, r.renderItem(i, &r.items[i]))
	}
	return strings.Join(lines, "\n")
}

func (r *ItemList) renderItem(index int, item *domain.KnowledgeItem) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	maxName := r.width - 30
	if maxName < 10 {
		maxName = 10
	}
	name := truncate(item.Name, maxName)

	marks := ""
	if item.IsVerified {
		marks += " ✓"
	}
	if item.IsFlagged {
		marks += " !"
	}

	label := fmt.Sprintf("%s%-*s %-14s", indicator, maxName, name, item.Category)
	score := r.styles.ForConfidence(item.Confidence, r.lowThreshold).Render(fmt.Sprintf("%.2f", item.Confidence))

	var title string
	if index == r.selected {
		title = r.styles.Selected.Render(label) + " " + score + marks
	} else {
		title = r.styles.Normal.Render(label) + " " + score + marks
	}

	detail := item.Description
	if detail == "" {
		detail = item.Evidence
	}
	return title + "\n" + r.styles.Muted.Render("    "+truncate(detail, r.width-6))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n < 4 {
		n = 4
	}
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n-3]) + "..."
	}
	return s
}

// SetItems replaces the list contents and keeps the selection in range.
func (r *ItemList) SetItems(items []domain.KnowledgeItem) {
	r.items = items
	if r.selected >= len(items) {
		r.selected = len(items) - 1
	}
	if r.selected < 0 {
		r.selected = 0
	}
}

// Replace swaps in an updated copy of an item with the same ID.
func (r *ItemList) Replace(item domain.KnowledgeItem) {
	for i := range r.items {
		if r.items[i].ID == item.ID {
			r.items[i] = item
			return
		}
	}
}

// Items returns the current items.
func (r *ItemList) Items() []domain.KnowledgeItem {
	return r.items
}

// Selected returns the index of the selected item.
func (r *ItemList) Selected() int {
	return r.selected
}

// SelectedItem returns the currently selected item, or nil if none.
func (r *ItemList) SelectedItem() *domain.KnowledgeItem {
	if r.selected < 0 || r.selected >= len(r.items) {
		return nil
	}
	return &r.items[r.selected]
}

// MoveUp moves selection up.
func (r *ItemList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *ItemList) MoveDown() {
	if r.selected < len(r.items)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *ItemList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of items.
func (r *ItemList) Count() int {
	return len(r.items)
}
