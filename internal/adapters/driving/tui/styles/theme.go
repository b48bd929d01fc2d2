// Package styles holds the TUI palette and the lipgloss styles built from it.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// Theme is a palette. The defaults are Catppuccin Mocha with a violet accent.
type Theme struct {
	Primary, Secondary     lipgloss.Color
	Foreground, Muted      lipgloss.Color
	Bar                    lipgloss.Color
	Success, Warning, Fail lipgloss.Color
}

func DefaultTheme() Theme {
	return Theme{
		Primary:    "#7C3AED",
		Secondary:  "#06B6D4",
		Foreground: "#CDD6F4",
		Muted:      "#6C7086",
		Bar:        "#181825",
		Success:    "#A6E3A1",
		Warning:    "#F9E2AF",
		Fail:       "#F38BA8",
	}
}

// Styles are shared by every view so the screens look alike.
type Styles struct {
	theme Theme

	Title, Subtitle, Normal, Muted lipgloss.Style
	Selected                       lipgloss.Style
	Success, Warning, Error        lipgloss.Style

	// Job pipeline stages.
	StageDone, StageActive, StagePending lipgloss.Style

	StatusBar, Help lipgloss.Style
}

func NewStyles(t Theme) *Styles {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &Styles{
		theme:        t,
		Title:        fg(t.Primary).Bold(true),
		Subtitle:     fg(t.Secondary).Bold(true),
		Normal:       fg(t.Foreground),
		Muted:        fg(t.Muted),
		Selected:     fg(t.Foreground).Background(t.Primary).Bold(true),
		Success:      fg(t.Success),
		Warning:      fg(t.Warning),
		Error:        fg(t.Fail),
		StageDone:    fg(t.Success),
		StageActive:  fg(t.Secondary).Bold(true),
		StagePending: fg(t.Muted).Faint(true),
		StatusBar:    fg(t.Muted).Background(t.Bar).Padding(0, 1),
		Help:         fg(t.Muted),
	}
}

func DefaultStyles() *Styles { return NewStyles(DefaultTheme()) }

func (s *Styles) Theme() Theme { return s.theme }

// ForState colours a job state: finished green, failed red, queued grey,
// anything in flight as the active stage.
func (s *Styles) ForState(state domain.JobState) lipgloss.Style {
	switch state {
	case domain.JobStateDone:
		return s.Success
	case domain.JobStateFailed:
		return s.Error
	case domain.JobStatePending:
		return s.Muted
	default:
		return s.StageActive
	}
}

// ForConfidence marks scores under lowThreshold as errors and anything under
// 0.8 as a warning.
func (s *Styles) ForConfidence(c, lowThreshold float64) lipgloss.Style {
	switch {
	case c < lowThreshold:
		return s.Error
	case c < 0.8:
		return s.Warning
	default:
		return s.Success
	}
}
