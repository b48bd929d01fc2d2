// Package review lists knowledge that needs a human decision: flagged items
// and unverified items below the confidence threshold.
package review

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// Actions are the side effects the view asks its host to run.
type Actions struct {
	// Load fetches every item of the project.
	Load func() tea.Cmd
	// Verify confirms an item.
	Verify func(id string) tea.Cmd
	// Flag sets or clears an item's review flag.
	Flag func(id string, flagged bool) tea.Cmd
}

// View is the knowledge review list.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	list      *list.ItemList
	actions   Actions
	threshold float64
	loading   bool
	err       error
}

// NewView creates a review view. Items at or above threshold are hidden
// unless flagged.
func NewView(s *styles.Styles, km *keymap.KeyMap, threshold float64, actions Actions) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.Default()
	}
	return &View{
		styles:    s,
		keymap:    km,
		list:      list.NewItemList(s, threshold),
		actions:   actions,
		threshold: threshold,
	}
}

// Load asks the host for fresh items.
func (v *View) Load() tea.Cmd {
	if v.actions.Load == nil {
		return nil
	}
	v.loading = true
	return v.actions.Load()
}

// Update handles messages for the view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.ItemsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.list.SetItems(NeedsReview(msg.Items, v.threshold))
		}
		return v, nil

	case messages.ItemUpdated:
		v.err = msg.Err
		if msg.Err == nil && msg.Item != nil {
			v.list.Replace(*msg.Item)
		}
		return v, nil

	case tea.KeyMsg:
		return v, v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, v.keymap.Up):
		v.list.MoveUp()
	case key.Matches(msg, v.keymap.Down):
		v.list.MoveDown()
	case key.Matches(msg, v.keymap.Refresh):
		return v.Load()
	case key.Matches(msg, v.keymap.Verify):
		if item := v.list.SelectedItem(); item != nil && v.actions.Verify != nil {
			return v.actions.Verify(item.ID)
		}
	case key.Matches(msg, v.keymap.Flag):
		if item := v.list.SelectedItem(); item != nil && v.actions.Flag != nil {
			return v.actions.Flag(item.ID, !item.IsFlagged)
		}
	}
	return nil
}

// View renders the review list.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Knowledge review"))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading..."))
		b.WriteString("\n\n")
	}

	b.WriteString(v.list.View())
	b.WriteString("\n")
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.list.SetDimensions(width, height-4)
}

// Count returns the number of items shown.
func (v *View) Count() int {
	return v.list.Count()
}

// Selected returns the selected item, or nil.
func (v *View) Selected() *domain.KnowledgeItem {
	return v.list.SelectedItem()
}

// NeedsReview keeps flagged items and unverified items below threshold.
func NeedsReview(items []domain.KnowledgeItem, threshold float64) []domain.KnowledgeItem {
	out := make([]domain.KnowledgeItem, 0, len(items))
	for _, item := range items {
		if item.IsFlagged || (!item.IsVerified && item.Confidence < threshold) {
			out = append(out, item)
		}
	}
	return out
}
