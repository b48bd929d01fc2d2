package domain

import "errors"

// Storage and input.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrKnowledgeChanged means a knowledge item was rewritten after a run
	// read it, so the run's update of that item would overwrite newer data.
	ErrKnowledgeChanged = errors.New("knowledge item changed concurrently")
)

// Job lifecycle.
var (
	// ErrJobAlreadyActive is returned when the project already has a
	// pending or running job; callers wait for it to finish.
	ErrJobAlreadyActive  = errors.New("job already active")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrJobTerminal       = errors.New("job is terminal")

	// ErrStateConflict means the stored job moved on underneath the writer,
	// typically because the timeout sweep failed it first.
	ErrStateConflict = errors.New("state changed concurrently")
)

// Reasoning service.
var (
	ErrGatewayUnavailable       = errors.New("gateway unavailable")
	ErrGatewayMalformedResponse = errors.New("gateway returned malformed response")
	ErrLLMUnavailable           = errors.New("LLM service unavailable")
	ErrRateLimited              = errors.New("rate limited")
)

// ErrInvalidPositionRange rejects change records whose spans fall outside
// the text pair they describe.
var ErrInvalidPositionRange = errors.New("invalid position range")

// ErrFingerprintStoreUnavailable means staleness is unknown. It is never
// reported as "nothing stale".
var ErrFingerprintStoreUnavailable = errors.New("fingerprint store unavailable")
