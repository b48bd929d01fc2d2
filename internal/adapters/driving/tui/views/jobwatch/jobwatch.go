// Package jobwatch renders a project's processing job as it moves through
// its stages.
package jobwatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// maxEvents bounds the event log.
const maxEvents = 50

var stages = []domain.JobState{
	domain.JobStatePending,
	domain.JobStateThinking,
	domain.JobStateAnalyzing,
	domain.JobStateExtracting,
	domain.JobStateDone,
}

// View follows the latest job of one project.
type View struct {
	styles  *styles.Styles
	spinner spinner.Model
	project string

	report  *domain.StatusReport
	jobID   string
	state   domain.JobState
	failure string
	// failedAt is the stage a failed job was in.
	failedAt domain.JobState
	events  []domain.JobEvent
	closed  bool

	width  int
	height int
}

// NewView creates a job watch view for project.
func NewView(s *styles.Styles, project string) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = s.StageActive

	return &View{
		styles:  s,
		spinner: sp,
		project: project,
		width:   80,
		height:  24,
	}
}

// Init starts the spinner.
func (v *View) Init() tea.Cmd {
	return v.spinner.Tick
}

// Update handles messages for the view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case messages.StatusLoaded:
		if msg.Err == nil && msg.Report != nil {
			v.report = msg.Report
			if job := msg.Report.CurrentJob; job != nil && (v.jobID == "" || v.jobID == job.ID) {
				v.jobID = job.ID
				v.state = job.State
				v.failure = job.ErrorDetails
			}
		}
		return v, nil

	case messages.JobEventReceived:
		v.record(msg.Event)
		return v, nil

	case messages.EventsClosed:
		v.closed = true
		return v, nil
	}
	return v, nil
}

func (v *View) record(ev domain.JobEvent) {
	if ev.JobID != v.jobID {
		v.failedAt = ""
	}
	v.jobID = ev.JobID
	v.state = ev.State
	v.failure = ev.Error
	if ev.State == domain.JobStateFailed {
		v.failedAt = ev.Previous
	}

	v.events = append(v.events, ev)
	if len(v.events) > maxEvents {
		v.events = v.events[len(v.events)-maxEvents:]
	}
}

// View renders the job watch.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Lorekeeper: " + v.project))
	b.WriteString("\n\n")

	if v.jobID == "" {
		b.WriteString(v.styles.Muted.Render("No jobs yet. Run 'lorekeeper analyze' to start one."))
		b.WriteString("\n")
	} else {
		b.WriteString(v.styles.Subtitle.Render("Job " + v.jobID))
		b.WriteString("\n")
		b.WriteString(v.renderPipeline())
		b.WriteString("\n")
		if v.state == domain.JobStateFailed && v.failure != "" {
			b.WriteString(v.styles.Error.Render("  " + v.failure))
			b.WriteString("\n")
		}
	}

	if r := v.report; r != nil {
		b.WriteString("\n")
		b.WriteString(v.renderReport(r))
	}

	if len(v.events) > 0 {
		b.WriteString("\n")
		b.WriteString(v.styles.Subtitle.Render("Events"))
		b.WriteString("\n")
		b.WriteString(v.renderEvents())
	}

	if v.closed {
		b.WriteString("\n")
		b.WriteString(v.styles.Warning.Render("Status stream closed."))
		b.WriteString("\n")
	}
	return b.String()
}

func (v *View) renderPipeline() string {
	current := stageIndex(v.state)
	if v.state == domain.JobStateFailed {
		current = stageIndex(v.failedAt)
	}
	parts := make([]string, 0, len(stages))
	for i, st := range stages {
		label := string(st)
		switch {
		case v.state == domain.JobStateFailed && i == current:
			parts = append(parts, v.styles.Error.Render("✗ "+label))
		case i < current || v.state == domain.JobStateDone:
			parts = append(parts, v.styles.StageDone.Render("✓ "+label))
		case i == current:
			parts = append(parts, v.spinner.View()+v.styles.StageActive.Render(label))
		default:
			parts = append(parts, v.styles.StagePending.Render("· "+label))
		}
	}
	return "  " + strings.Join(parts, v.styles.Muted.Render(" → "))
}

// stageIndex places a state on the pipeline. Unknown states map to pending.
func stageIndex(state domain.JobState) int {
	for i, st := range stages {
		if st == state {
			return i
		}
	}
	return 0
}

func (v *View) renderReport(r *domain.StatusReport) string {
	var lines []string
	if r.LastProcessedAt != nil {
		lines = append(lines, fmt.Sprintf("Last analysed:  %s", r.LastProcessedAt.Local().Format(time.DateTime)))
	} else {
		lines = append(lines, "Last analysed:  never")
	}
	switch {
	case r.StalenessUnknown:
		lines = append(lines, v.styles.Warning.Render("Unanalysed:     unknown"))
	case r.HasUnanalyzedContent:
		lines = append(lines, fmt.Sprintf("Unanalysed:     %d chapter(s)", r.UnanalyzedChapterCount))
	default:
		lines = append(lines, "Unanalysed:     none")
	}
	lines = append(lines, fmt.Sprintf("Low confidence: %d", r.LowConfidenceFactsCount))
	if r.HasErrors {
		lines = append(lines, v.styles.Error.Render(fmt.Sprintf("Failed jobs:    %d", r.ErrorCount)))
	}
	return v.styles.Normal.Render(strings.Join(lines, "\n")) + "\n"
}

func (v *View) renderEvents() string {
	room := v.height - 16
	if room < 3 {
		room = 3
	}
	events := v.events
	if len(events) > room {
		events = events[len(events)-room:]
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		line := fmt.Sprintf("  %s  %s", ev.At.Local().Format(time.TimeOnly), v.styles.ForState(ev.State).Render(string(ev.State)))
		if ev.Error != "" {
			line += v.styles.Error.Render("  " + ev.Error)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n"
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// State returns the state of the followed job.
func (v *View) State() domain.JobState {
	return v.state
}

// JobID returns the followed job.
func (v *View) JobID() string {
	return v.jobID
}

// Events returns the recorded events, oldest first.
func (v *View) Events() []domain.JobEvent {
	return v.events
}
