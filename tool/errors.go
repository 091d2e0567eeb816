package tool

import "errors"

// Sentinel errors for tool execution.
var (
	// ErrNotFound is returned when a tool cannot be found in the registry.
	ErrNotFound = errors.New("tool not found")

	// ErrTimeout is returned when a tool execution exceeds its timeout.
	ErrTimeout = errors.New("tool execution timeout")

	// ErrPanicked is returned when a tool panics during execution.
	ErrPanicked = errors.New("tool panicked")
)
