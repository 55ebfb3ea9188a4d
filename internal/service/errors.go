package service

import (
	"errors"
	"fmt"

	"github.com/aaasdream/ai-studio-like/internal/store"
)

// Common service errors - sentinel errors used across service methods.
// Callers check for these with errors.Is().
var (
	// ErrSessionNotFound indicates that the batch session does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrSessionNotFound = errors.New("batch session not found")

	// ErrRunInProgress indicates that the session already has an active
	// run, which blocks starting another run, deleting the session, or
	// manually deleting its cache.
	// API layer should map this to HTTP 409 Conflict.
	ErrRunInProgress = errors.New("a run is already in progress for this session")

	// ErrNothingToRun indicates that every item in the session is already
	// in a terminal state, so a run would do no work.
	// API layer should map this to HTTP 409 Conflict.
	ErrNothingToRun = errors.New("session has no pending items to run")

	// ErrNoCacheAttached indicates the session has no context cache to
	// delete.
	// API layer should map this to HTTP 404 Not Found.
	ErrNoCacheAttached = errors.New("session has no attached context cache")
)

// BatchServiceError wraps unexpected errors from the batch service with
// operation context.
type BatchServiceError struct {
	// Operation is the operation that failed (e.g., "create_session", "run")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for BatchServiceError.
func (e *BatchServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("batch service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("batch service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *BatchServiceError) Unwrap() error {
	return e.Err
}

// NewBatchServiceError creates a new BatchServiceError.
// Known sentinel errors pass through directly without wrapping.
func NewBatchServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrRunInProgress) ||
		errors.Is(err, ErrNothingToRun) ||
		errors.Is(err, ErrNoCacheAttached) {
		return err
	}

	// Map store-level sentinels to service-level ones
	if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}

	return &BatchServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
