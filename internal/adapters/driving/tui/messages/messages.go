// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// JobEventReceived carries one job state change from the status source.
type JobEventReceived struct {
	Event domain.JobEvent
}

// EventsClosed is sent when the status subscription ends.
type EventsClosed struct{}

// StatusLoaded carries a fresh status report.
type StatusLoaded struct {
	Report *domain.StatusReport
	Err    error
}

// ItemsLoaded carries knowledge items awaiting review.
type ItemsLoaded struct {
	Items []domain.KnowledgeItem
	Err   error
}

// ItemUpdated is sent after an item was verified or flagged.
type ItemUpdated struct {
	Item *domain.KnowledgeItem
	Err  error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewJobs follows the project's processing jobs.
	ViewJobs ViewType = iota
	// ViewReview lists knowledge that needs a human look.
	ViewReview
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewJobs:
		return "jobs"
	case ViewReview:
		return "review"
	default:
		return "unknown"
	}
}
