// Package mcp exposes lorekeeper to AI assistants over the Model Context
// Protocol: content fingerprints, job status, staleness and knowledge.
package mcp

import "errors"

// ErrMissingHashService is returned when the hash service is not provided.
var ErrMissingHashService = errors.New("mcp: hash service is required")

// ErrMissingJobService is returned when the job service is not provided.
var ErrMissingJobService = errors.New("mcp: job service is required")
