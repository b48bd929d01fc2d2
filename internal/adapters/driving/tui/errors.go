package tui

import "errors"

// ErrMissingJobService is returned when the job service is not provided.
var ErrMissingJobService = errors.New("tui: job service is required")

// ErrMissingStatusSource is returned when the status source is not provided.
var ErrMissingStatusSource = errors.New("tui: status source is required")

// ErrMissingProject is returned when no project is selected.
var ErrMissingProject = errors.New("tui: project is required")
