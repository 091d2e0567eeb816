package codelet

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sengac/codelet/types"
)

// Re-export types from types package so callers only import codelet
type (
	Role         = types.Role
	Message      = types.Message
	MessageView  = types.MessageView
	ContentType  = types.ContentType
	ContentBlock = types.ContentBlock
	Usage        = types.Usage
)

// Re-export constants
const (
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant

	ContentTypeText       = types.ContentTypeText
	ContentTypeToolUse    = types.ContentTypeToolUse
	ContentTypeToolResult = types.ContentTypeToolResult
)

// NewMessage creates a new message
func NewMessage(role Role, content []ContentBlock) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a new user message with text content
func NewUserMessage(text string) Message {
	return NewMessage(RoleUser, []ContentBlock{
		{Type: ContentTypeText, Text: text},
	})
}

// NewAssistantMessage creates a new assistant message
func NewAssistantMessage(content []ContentBlock) Message {
	return NewMessage(RoleAssistant, content)
}

// NewTextBlock creates a text content block
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{
		Type: ContentTypeText,
		Text: text,
	}
}

// NewToolUseBlock creates a tool use content block
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{
		Type:      ContentTypeToolUse,
		ToolUseID: id,
		ToolName:  name,
		ToolInput: input,
	}
}

// NewToolResultBlock creates a tool result content block
func NewToolResultBlock(toolUseID string, content string, isError bool) ContentBlock {
	return ContentBlock{
		Type:         ContentTypeToolResult,
		ToolResultID: toolUseID,
		ToolContent:  content,
		IsError:      isError,
	}
}
