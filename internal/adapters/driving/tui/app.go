package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/views/jobwatch"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/views/review"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// subscribed carries the event channel once the subscription is open.
type subscribed struct {
	events <-chan domain.JobEvent
	cancel func()
	err    error
}

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports   *Ports
	project string

	// ctx is the context for cancellation.
	ctx context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap
	bar    *status.Bar

	jobs   *jobwatch.View
	review *review.View
	view   messages.ViewType

	events  <-chan domain.JobEvent
	cancel  func()
	err     error
	width   int
	height  int
	quitted bool
}

// NewApp creates a new TUI application watching project.
func NewApp(ports *Ports, project string) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	if project == "" {
		return nil, ErrMissingProject
	}

	s := styles.DefaultStyles()
	km := keymap.Default()

	a := &App{
		ports:   ports,
		project: project,
		ctx:     context.Background(),
		styles:  s,
		keymap:  km,
		bar:     status.NewBar(s, km),
		jobs:    jobwatch.NewView(s, project),
		view:    messages.ViewJobs,
		width:   80,
		height:  24,
	}
	a.review = review.NewView(s, km, ports.reviewThreshold(), review.Actions{
		Load:   a.loadItems,
		Verify: a.verifyItem,
		Flag:   a.flagItem,
	})
	a.bar.SetProject(project)
	return a, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init subscribes to job events and loads the current status.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.subscribe, a.loadStatus, a.jobs.Init())
}

// Update handles messages and updates the model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.bar.SetWidth(msg.Width)
		a.jobs.SetDimensions(msg.Width, msg.Height-1)
		a.review.SetDimensions(msg.Width, msg.Height-1)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case subscribed:
		if msg.err != nil {
			a.err = msg.err
			a.bar.SetState(status.StateError)
			a.bar.SetMessage(msg.err.Error())
			return a, nil
		}
		a.events, a.cancel = msg.events, msg.cancel
		return a, a.waitForEvent

	case messages.JobEventReceived:
		a.jobs.Update(msg)
		a.syncBar(msg.Event.State, msg.Event.Error)
		cmds := []tea.Cmd{a.waitForEvent}
		if msg.Event.State.IsTerminal() {
			cmds = append(cmds, a.loadStatus)
		}
		return a, tea.Batch(cmds...)

	case messages.EventsClosed:
		a.jobs.Update(msg)
		a.bar.SetMessage("event stream closed")
		return a, nil

	case messages.StatusLoaded:
		a.jobs.Update(msg)
		if msg.Err != nil {
			a.bar.SetState(status.StateError)
			a.bar.SetMessage(msg.Err.Error())
		} else if msg.Report != nil && msg.Report.CurrentJob != nil {
			a.syncBar(msg.Report.CurrentJob.State, msg.Report.CurrentJob.ErrorDetails)
		}
		return a, nil

	case messages.ItemsLoaded, messages.ItemUpdated:
		var cmd tea.Cmd
		a.review, cmd = a.review.Update(msg)
		if a.view == messages.ViewReview {
			a.bar.SetCount(a.review.Count())
		}
		return a, cmd
	}

	var cmd tea.Cmd
	a.jobs, cmd = a.jobs.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keymap.Quit):
		a.quit()
		return a, tea.Quit

	case key.Matches(msg, a.keymap.Help):
		a.bar.ToggleHelp()
		return a, nil

	case key.Matches(msg, a.keymap.SwitchView):
		if a.view == messages.ViewJobs && a.ports.Knowledge != nil {
			a.view = messages.ViewReview
			a.bar.SetState(status.StateReview)
			a.bar.SetCount(a.review.Count())
			return a, a.review.Load()
		}
		a.view = messages.ViewJobs
		a.syncBar(a.jobs.State(), "")
		return a, nil
	}

	if a.view == messages.ViewReview {
		var cmd tea.Cmd
		a.review, cmd = a.review.Update(msg)
		return a, cmd
	}
	if key.Matches(msg, a.keymap.Refresh) {
		return a, a.loadStatus
	}
	return a, nil
}

// View renders the current view and the status bar.
func (a *App) View() string {
	if a.quitted {
		return ""
	}
	body := a.jobs.View()
	if a.view == messages.ViewReview {
		body = a.review.View()
	}
	if a.err != nil {
		body += a.styles.Error.Render(fmt.Sprintf("Error: %v", a.err)) + "\n"
	}
	return body + "\n" + a.bar.View()
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.view
}

func (a *App) syncBar(state domain.JobState, failure string) {
	if a.view == messages.ViewReview {
		return
	}
	switch {
	case state == domain.JobStateFailed:
		a.bar.SetState(status.StateError)
		a.bar.SetMessage(failure)
	case state.IsActive():
		a.bar.SetState(status.StateProcessing)
		a.bar.SetMessage(string(state))
	default:
		a.bar.SetState(status.StateIdle)
		a.bar.SetMessage("")
	}
}

func (a *App) quit() {
	a.quitted = true
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *App) subscribe() tea.Msg {
	events, cancel, err := a.ports.Status.Subscribe(a.ctx, a.project)
	return subscribed{events: events, cancel: cancel, err: err}
}

func (a *App) waitForEvent() tea.Msg {
	if a.events == nil {
		return messages.EventsClosed{}
	}
	select {
	case ev, ok := <-a.events:
		if !ok {
			return messages.EventsClosed{}
		}
		return messages.JobEventReceived{Event: ev}
	case <-a.ctx.Done():
		return messages.EventsClosed{}
	}
}

func (a *App) loadStatus() tea.Msg {
	report, err := a.ports.Jobs.Status(a.ctx, a.project)
	return messages.StatusLoaded{Report: report, Err: err}
}

func (a *App) loadItems() tea.Cmd {
	return func() tea.Msg {
		items, err := a.ports.Knowledge.List(a.ctx, a.project, driven.KnowledgeFilter{})
		return messages.ItemsLoaded{Items: items, Err: err}
	}
}

func (a *App) verifyItem(id string) tea.Cmd {
	return func() tea.Msg {
		item, err := a.ports.Knowledge.Verify(a.ctx, id)
		return messages.ItemUpdated{Item: item, Err: err}
	}
}

func (a *App) flagItem(id string, flagged bool) tea.Cmd {
	return func() tea.Msg {
		item, err := a.ports.Knowledge.Flag(a.ctx, id, flagged)
		return messages.ItemUpdated{Item: item, Err: err}
	}
}
