package codelet

import (
	"errors"
	"fmt"

	"github.com/sengac/codelet/backend"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the session configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoBackend is returned when no backend could be detected or configured
	ErrNoBackend = backend.ErrNoBackend

	// ErrUnknownBackend is returned when switching to a backend that was not detected
	ErrUnknownBackend = backend.ErrUnknownBackend

	// ErrSessionBusy is returned when an operation requires an idle session
	ErrSessionBusy = errors.New("session is busy")

	// ErrEmptyInput is returned when Prompt is called with an empty input
	ErrEmptyInput = errors.New("empty input")

	// ErrCompactionRequired signals that the token threshold was reached and
	// the in-flight stream was cancelled so compaction can run. It is the
	// cancellation cause carried by the stream context; it only surfaces to
	// callers when the retried stream breaches the threshold again.
	ErrCompactionRequired = errors.New("compaction required")

	// ErrInterrupted signals that the user interrupted the stream.
	ErrInterrupted = errors.New("interrupted")
)

// SessionError represents an error with additional context
type SessionError struct {
	Op        string         // Operation that failed
	Err       error          // Underlying error
	SessionID string         // Session ID if applicable
	Context   map[string]any // Additional context
}

// Error implements the error interface
func (e *SessionError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s (session=%s): %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *SessionError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *SessionError) WithContext(key string, value any) *SessionError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewSessionError creates a new SessionError
func NewSessionError(op string, err error) *SessionError {
	return &SessionError{
		Op:  op,
		Err: err,
	}
}

// NewSessionErrorWithID creates a new SessionError with session ID
func NewSessionErrorWithID(op string, sessionID string, err error) *SessionError {
	return &SessionError{
		Op:        op,
		Err:       err,
		SessionID: sessionID,
	}
}
