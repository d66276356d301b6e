package domain

import (
	"errors"
	"fmt"
)

// Error classes. Specific errors below wrap one of these so callers can match
// either the exact failure or its class with errors.Is.
var (
	// ErrConfiguration is fatal and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransport covers network failures reaching the worker or a backend.
	ErrTransport = errors.New("transport error")

	// ErrValidation is returned for malformed or incomplete payloads.
	ErrValidation = errors.New("validation error")

	// ErrPollTimeout is returned when polling gives up before a result arrives.
	// The job may still complete later.
	ErrPollTimeout = errors.New("polling timed out")
)

var (
	// ErrMissingJobID is returned when a payload carries no job identifier.
	ErrMissingJobID = fmt.Errorf("%w: missing jobId", ErrValidation)

	// ErrMalformedBody is returned when a payload cannot be parsed as JSON.
	ErrMalformedBody = fmt.Errorf("%w: malformed request body", ErrValidation)

	// ErrMissingTarget is returned when a dispatch carries nothing to analyze.
	ErrMissingTarget = fmt.Errorf("%w: missing analysis target", ErrValidation)

	// ErrUnknownWorkflow is returned for a workflow name that is not registered.
	ErrUnknownWorkflow = fmt.Errorf("%w: unknown workflow", ErrValidation)

	// ErrWorkerMisconfigured is returned when no webhook URL is configured for a workflow.
	ErrWorkerMisconfigured = fmt.Errorf("%w: worker webhook not configured", ErrConfiguration)

	// ErrWorkerUnreachable is returned when the outbound request to the worker fails.
	ErrWorkerUnreachable = fmt.Errorf("%w: worker unreachable", ErrTransport)

	// ErrStoreUnavailable is returned when the result store backend cannot be reached.
	ErrStoreUnavailable = fmt.Errorf("%w: result store unavailable", ErrTransport)
)

// ErrDuplicateEvent is returned when an event id is already in the feed.
var ErrDuplicateEvent = errors.New("event already recorded")

// WorkerConfigError names the setting that is missing for a workflow.
// It matches ErrWorkerMisconfigured with errors.Is.
type WorkerConfigError struct {
	EnvKey string
}

func (e *WorkerConfigError) Error() string {
	return e.EnvKey + " not configured"
}

func (e *WorkerConfigError) Unwrap() error {
	return ErrWorkerMisconfigured
}
