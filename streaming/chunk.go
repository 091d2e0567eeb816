package streaming

import (
	"encoding/json"

	"github.com/sengac/codelet/types"
)

// ChunkType represents the type of a session output chunk
type ChunkType string

const (
	// ChunkTypeText carries batched model text
	ChunkTypeText ChunkType = "text"

	// ChunkTypeToolCall announces a tool invocation requested by the model
	ChunkTypeToolCall ChunkType = "tool_call"

	// ChunkTypeToolResult carries the output of an executed tool
	ChunkTypeToolResult ChunkType = "tool_result"

	// ChunkTypeStatus carries a periodic progress line
	ChunkTypeStatus ChunkType = "status"

	// ChunkTypeTokenUpdate carries a token usage snapshot
	ChunkTypeTokenUpdate ChunkType = "token_update"

	// ChunkTypeInterrupted terminates a stream cut short by the user
	ChunkTypeInterrupted ChunkType = "interrupted"

	// ChunkTypeDone terminates a successful stream
	ChunkTypeDone ChunkType = "done"

	// ChunkTypeError terminates a failed stream
	ChunkTypeError ChunkType = "error"
)

// Chunk is a single unit of session output. Every Prompt call delivers
// zero or more non-terminal chunks followed by exactly one terminal chunk
// (Done, Error or Interrupted).
type Chunk interface {
	Type() ChunkType
}

// Sink receives chunks as they are produced. It is called from the
// prompt loop goroutine; implementations must not block for long.
type Sink func(Chunk)

// Terminal reports whether the chunk ends the stream.
func Terminal(c Chunk) bool {
	switch c.Type() {
	case ChunkTypeDone, ChunkTypeError, ChunkTypeInterrupted:
		return true
	}
	return false
}

// Text carries a batch of model output text
type Text struct {
	Content string
}

func (c *Text) Type() ChunkType { return ChunkTypeText }

// ToolCall announces a tool invocation
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (c *ToolCall) Type() ChunkType { return ChunkTypeToolCall }

// ToolResult carries the output of an executed tool
type ToolResult struct {
	ID      string
	Name    string
	Output  string
	IsError bool
}

func (c *ToolResult) Type() ChunkType { return ChunkTypeToolResult }

// Status carries a progress line emitted on the status tick
type Status struct {
	Message string
}

func (c *Status) Type() ChunkType { return ChunkTypeStatus }

// TokenUpdate carries the current token accounting snapshot
type TokenUpdate struct {
	Usage         types.Usage
	ContextWindow int
	Threshold     int
}

func (c *TokenUpdate) Type() ChunkType { return ChunkTypeTokenUpdate }

// Interrupted terminates a stream the user cancelled. QueuedInputs holds
// inputs typed while the stream was running, in arrival order.
type Interrupted struct {
	QueuedInputs []string
}

func (c *Interrupted) Type() ChunkType { return ChunkTypeInterrupted }

// Done terminates a successful stream
type Done struct {
	Response string
	Usage    types.Usage
}

func (c *Done) Type() ChunkType { return ChunkTypeDone }

// Error terminates a failed stream
type Error struct {
	Err error
}

func (c *Error) Type() ChunkType { return ChunkTypeError }
