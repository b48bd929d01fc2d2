// Package status renders the one-line bar at the bottom of the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
)

// State is what the left side of the bar reports.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateError      State = "error"
	StateReview     State = "review"
)

// Bar shows the project and state on the left and key hints on the right.
// With the full help toggled on, the bindings table is drawn above it.
type Bar struct {
	styles *styles.Styles
	keys   *keymap.KeyMap
	help   help.Model

	state   State
	project string
	message string
	count   int
	width   int
}

func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.Default()
	}

	h := help.New()
	h.Styles.ShortKey = s.Subtitle
	h.Styles.ShortDesc = s.Muted
	h.Styles.FullKey = s.Subtitle
	h.Styles.FullDesc = s.Muted

	b := &Bar{styles: s, keys: km, help: h, state: StateIdle}
	b.SetWidth(80)
	return b
}

func (b *Bar) View() string {
	left := b.left()
	right := b.right()
	gap := max(b.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)

	if b.help.ShowAll {
		return b.help.FullHelpView(b.keys.FullHelp()) + "\n" + bar
	}
	return bar
}

func (b *Bar) left() string {
	var prefix string
	if b.project != "" {
		prefix = b.styles.Subtitle.Render(b.project) + " "
	}

	switch b.state {
	case StateProcessing:
		return prefix + b.styles.StageActive.Render("processing")
	case StateError:
		msg := "Error"
		if b.message != "" {
			msg = "Error: " + b.message
		}
		return prefix + b.styles.Error.Render(msg)
	case StateReview:
		return prefix + b.styles.Normal.Render(fmt.Sprintf("%d to review", b.count))
	default:
		return prefix + b.styles.Muted.Render("idle")
	}
}

func (b *Bar) right() string {
	if b.state == StateReview {
		return b.help.ShortHelpView(b.keys.ReviewHelp())
	}
	return b.help.ShortHelpView(b.keys.ShortHelp())
}

// ToggleHelp switches between key hints and the full bindings table.
func (b *Bar) ToggleHelp() { b.help.ShowAll = !b.help.ShowAll }

func (b *Bar) SetState(state State) { b.state = state }

func (b *Bar) State() State { return b.state }

func (b *Bar) SetProject(project string) { b.project = project }

// SetMessage sets the text shown in StateError.
func (b *Bar) SetMessage(message string) { b.message = message }

// SetCount sets the number shown in StateReview.
func (b *Bar) SetCount(n int) { b.count = n }

func (b *Bar) SetWidth(width int) {
	b.width = width
	b.help.Width = width
}
