package compaction

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sengac/codelet/types"
)

// Turn is one user/assistant exchange, including the tool activity it
// triggered.
type Turn struct {
	// Index is the position of the turn in the conversation.
	Index int

	// UserInput is the user's text for this turn.
	UserInput string

	// Response is the assistant's text response.
	Response string

	// ToolCalls are the tool invocations the assistant requested.
	ToolCalls []ToolCall

	// ToolResults are the outcomes of those invocations.
	ToolResults []ToolResult

	// Success is false when any tool result in the turn failed.
	Success bool

	// Timestamp is when the turn started.
	Timestamp time.Time
}

// ToolCall is a single tool invocation within a turn.
type ToolCall struct {
	ID         string
	Name       string
	Parameters json.RawMessage
}

// Filename returns the last path segment of the call's file_path
// parameter, or empty when the call has none.
func (c ToolCall) Filename() string {
	path := gjson.GetBytes(c.Parameters, "file_path").String()
	if path == "" {
		return ""
	}
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// ToolResult is the outcome of a tool call.
type ToolResult struct {
	CallID  string
	Output  string
	Success bool
}

// TurnsFromMessages groups a flat message history into turns. Each user
// text message opens a turn; the following assistant messages contribute
// the response and tool calls; tool results carried on user messages
// attach to the turn in progress.
func TurnsFromMessages(msgs []types.Message) []Turn {
	var turns []Turn
	var current *Turn

	flush := func() {
		if current == nil {
			return
		}
		current.Index = len(turns)
		current.Success = turnSuccess(*current)
		turns = append(turns, *current)
		current = nil
	}

	for _, msg := range msgs {
		switch msg.Role {
		case types.RoleUser:
			for _, block := range msg.Content {
				if block.Type == types.ContentTypeToolResult && current != nil {
					current.ToolResults = append(current.ToolResults, ToolResult{
						CallID:  block.ToolResultID,
						Output:  block.ToolContent,
						Success: !block.IsError,
					})
				}
			}
			if text := strings.TrimSpace(msg.Text()); text != "" {
				flush()
				current = &Turn{
					UserInput: msg.Text(),
					Timestamp: msg.CreatedAt,
				}
			}

		case types.RoleAssistant:
			if current == nil {
				current = &Turn{Timestamp: msg.CreatedAt}
			}
			current.Response += msg.Text()
			for _, block := range msg.Content {
				if block.Type == types.ContentTypeToolUse {
					current.ToolCalls = append(current.ToolCalls, ToolCall{
						ID:         block.ToolUseID,
						Name:       block.ToolName,
						Parameters: block.ToolInput,
					})
				}
			}
		}
	}
	flush()

	return turns
}

// turnSuccess reports whether no tool result in the turn failed.
func turnSuccess(t Turn) bool {
	for _, result := range t.ToolResults {
		if !result.Success {
			return false
		}
	}
	return true
}
