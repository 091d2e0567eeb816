// Package backend adapts model provider SDKs to a uniform streaming
// interface. Each adapter runs the multi-call tool loop and delivers
// progress as a channel of events, so the session layer never touches
// provider wire formats.
package backend

import (
	"context"
	"encoding/json"

	"github.com/sengac/codelet/tool"
	"github.com/sengac/codelet/types"
)

// Backend streams model responses for a single provider.
type Backend interface {
	// Name returns the backend identifier, e.g. "claude" or "openai".
	Name() string

	// ContextWindow returns the context window of the configured model
	// in tokens.
	ContextWindow() int

	// Stream issues the request and returns a channel of events. The
	// channel is closed after a terminal event (Final or Failure). The
	// adapter goroutine respects ctx cancellation at every blocking
	// point.
	Stream(ctx context.Context, req Request) (<-chan Event, error)
}

// Request describes a single prompt run against a backend.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation history, newest last.
	Messages []types.Message

	// Tools the model may call during this run.
	Tools []tool.Tool

	// MaxTokens caps the response length per model call.
	MaxTokens int64

	// Hook receives usage callbacks around each model call. Optional.
	Hook UsageHook
}

// UsageHook observes token usage around model calls. The session layer
// uses it to enforce the context-window threshold mid-stream.
type UsageHook interface {
	// OnCallStart is invoked before each API call with the estimated
	// input size of the request payload, and again when the server
	// reports authoritative usage. Returning an error aborts the run.
	OnCallStart(estimatedInput int, u types.Usage) error

	// OnOutputDelta is invoked as output token counts arrive mid-stream.
	// The count is cumulative for the current call.
	OnOutputDelta(outputTokens int64)
}

// EventType discriminates backend events.
type EventType string

const (
	EventCallStarted EventType = "call_started"
	EventTextDelta   EventType = "text_delta"
	EventToolCall    EventType = "tool_call"
	EventToolResult  EventType = "tool_result"
	EventOutputDelta EventType = "output_delta"
	EventFinal       EventType = "final"
	EventFailure     EventType = "failure"
)

// Event is implemented by all backend stream events.
type Event interface {
	Type() EventType
}

// CallStarted reports server-reported usage at the start of a model call.
type CallStarted struct {
	Usage types.Usage
}

func (*CallStarted) Type() EventType { return EventCallStarted }

// TextDelta carries an incremental piece of assistant text.
type TextDelta struct {
	Text string
}

func (*TextDelta) Type() EventType { return EventTextDelta }

// ToolCallEvent reports a tool invocation requested by the model.
type ToolCallEvent struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (*ToolCallEvent) Type() EventType { return EventToolCall }

// ToolResultEvent reports the outcome of an executed tool call.
type ToolResultEvent struct {
	ID      string
	Name    string
	Output  string
	IsError bool
}

func (*ToolResultEvent) Type() EventType { return EventToolResult }

// OutputDelta carries the cumulative output token count for the current
// model call.
type OutputDelta struct {
	OutputTokens int64
}

func (*OutputDelta) Type() EventType { return EventOutputDelta }

// Final is the terminal event of a successful run. Message holds the
// last assistant message, Usage the accumulated usage across all calls
// in the run.
type Final struct {
	Message    types.Message
	Usage      types.Usage
	StopReason string
}

func (*Final) Type() EventType { return EventFinal }

// Failure is the terminal event of a failed run.
type Failure struct {
	Err error
}

func (*Failure) Type() EventType { return EventFailure }
