package tool

import (
	"context"
)

// Context keys for session information passed to tools
type contextKey string

const (
	sessionIDKey contextKey = "codelet_session_id"
	variablesKey contextKey = "codelet_variables"
)

// CallContext contains session-level information available to tools during
// execution. Tools can access this via GetCallContext() or the convenience
// GetVariable() helper.
type CallContext struct {
	// SessionID is the identifier of the session that issued the tool call
	SessionID string

	// Variables contains per-session variables passed via the session options.
	// These are useful for passing context like workspace paths, tenant IDs, etc.
	Variables map[string]any
}

// WithCallContext attaches call context to the given context.
// This is called internally by the session before executing a tool.
func WithCallContext(ctx context.Context, cc CallContext) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, cc.SessionID)
	ctx = context.WithValue(ctx, variablesKey, cc.Variables)
	return ctx
}

// GetCallContext extracts the full call context from the context.
// Returns false if the context was not enriched with session information.
func GetCallContext(ctx context.Context) (CallContext, bool) {
	sessionID, ok := ctx.Value(sessionIDKey).(string)
	vars, _ := ctx.Value(variablesKey).(map[string]any)

	if !ok {
		return CallContext{}, false
	}
	return CallContext{SessionID: sessionID, Variables: vars}, true
}

// GetSessionID extracts the session ID from the context.
// Returns an empty string and false if not available.
func GetSessionID(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionIDKey).(string)
	return sessionID, ok
}

// GetVariables extracts all variables from the context.
// Returns nil if no variables were set.
func GetVariables(ctx context.Context) map[string]any {
	vars, _ := ctx.Value(variablesKey).(map[string]any)
	return vars
}

// GetVariable extracts a single variable from the context by key.
// The type parameter T specifies the expected type of the variable.
// Returns the zero value and false if the variable is not found or has wrong type.
//
// Example:
//
//	workspace, ok := tool.GetVariable[string](ctx, "workspace")
//	if !ok {
//	    return "", errors.New("workspace not provided")
//	}
func GetVariable[T any](ctx context.Context, key string) (T, bool) {
	vars, _ := ctx.Value(variablesKey).(map[string]any)
	if vars == nil {
		var zero T
		return zero, false
	}
	val, ok := vars[key]
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, ok
}

// MustGetVariable extracts a variable from the context or panics if not found.
// Use this only when the variable is guaranteed to be present.
func MustGetVariable[T any](ctx context.Context, key string) T {
	val, ok := GetVariable[T](ctx, key)
	if !ok {
		panic("codelet: missing or invalid required variable: " + key)
	}
	return val
}

// GetVariableOr extracts a variable from the context or returns the default value.
//
// Example:
//
//	maxRetries := tool.GetVariableOr[int](ctx, "max_retries", 3)
func GetVariableOr[T any](ctx context.Context, key string, defaultValue T) T {
	val, ok := GetVariable[T](ctx, key)
	if !ok {
		return defaultValue
	}
	return val
}
