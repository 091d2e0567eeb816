package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sengac/codelet/tool"
)

// maxReadBytes caps the file content returned to the model.
const maxReadBytes = 256 * 1024

// ReadTool reads a file from the local filesystem.
type ReadTool struct{}

// NewReadTool creates a Read tool.
func NewReadTool() *ReadTool {
	return &ReadTool{}
}

func (r *ReadTool) Name() string {
	return "Read"
}

func (r *ReadTool) Description() string {
	return "Reads a file from the local filesystem and returns its content with line numbers."
}

func (r *ReadTool) InputSchema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.Property{
			"file_path": {
				Type:        "string",
				Description: "The absolute path to the file to read",
			},
			"offset": {
				Type:        "integer",
				Description: "Line number to start reading from (1-based)",
				Minimum:     ptrFloat(1),
			},
			"limit": {
				Type:        "integer",
				Description: "Maximum number of lines to read",
				Minimum:     ptrFloat(1),
			},
		},
		Required: []string{"file_path"},
	}
}

func (r *ReadTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	info, err := os.Stat(params.FilePath)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", params.FilePath)
	}
	if info.Size() > maxReadBytes {
		return "", fmt.Errorf("file exceeds %d bytes, use offset/limit to read a range", maxReadBytes)
	}

	data, err := os.ReadFile(params.FilePath)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	start := 0
	if params.Offset > 0 {
		start = params.Offset - 1
	}
	if start >= len(lines) {
		return "", fmt.Errorf("offset %d is past the end of the file (%d lines)", params.Offset, len(lines))
	}
	end := len(lines)
	if params.Limit > 0 && start+params.Limit < end {
		end = start + params.Limit
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%6d\t%s\n", i+1, lines[i])
	}
	return sb.String(), nil
}

// WriteTool writes a file to the local filesystem, creating parent
// directories as needed.
type WriteTool struct{}

// NewWriteTool creates a Write tool.
func NewWriteTool() *WriteTool {
	return &WriteTool{}
}

func (w *WriteTool) Name() string {
	return "Write"
}

func (w *WriteTool) Description() string {
	return "Writes content to a file, overwriting it if it exists."
}

func (w *WriteTool) InputSchema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.Property{
			"file_path": {
				Type:        "string",
				Description: "The absolute path to the file to write",
			},
			"content": {
				Type:        "string",
				Description: "The content to write to the file",
			},
		},
		Required: []string{"file_path", "content"},
	}
}

func (w *WriteTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if params.FilePath == "" {
		return "", fmt.Errorf("file_path cannot be empty")
	}

	if dir := filepath.Dir(params.FilePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(params.FilePath, []byte(params.Content), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(params.Content), params.FilePath), nil
}

// EditTool performs exact string replacements in existing files.
type EditTool struct{}

// NewEditTool creates an Edit tool.
func NewEditTool() *EditTool {
	return &EditTool{}
}

func (e *EditTool) Name() string {
	return "Edit"
}

func (e *EditTool) Description() string {
	return "Performs an exact string replacement in a file. The old_string must be unique " +
		"in the file unless replace_all is set."
}

func (e *EditTool) InputSchema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.Property{
			"file_path": {
				Type:        "string",
				Description: "The absolute path to the file to modify",
			},
			"old_string": {
				Type:        "string",
				Description: "The text to replace",
			},
			"new_string": {
				Type:        "string",
				Description: "The text to replace it with (must differ from old_string)",
			},
			"replace_all": {
				Type:        "boolean",
				Description: "Replace all occurrences of old_string (default false)",
			},
		},
		Required: []string{"file_path", "old_string", "new_string"},
	}
}

func (e *EditTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		FilePath   string `json:"file_path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if params.OldString == "" {
		return "", fmt.Errorf("old_string cannot be empty")
	}
	if params.OldString == params.NewString {
		return "", fmt.Errorf("new_string must differ from old_string")
	}

	info, err := os.Stat(params.FilePath)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", params.FilePath)
	}

	data, err := os.ReadFile(params.FilePath)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	content := string(data)

	matches := strings.Count(content, params.OldString)
	if matches == 0 {
		return "", fmt.Errorf("old_string not found in %s", params.FilePath)
	}
	if !params.ReplaceAll && matches != 1 {
		return "", fmt.Errorf("old_string must be unique when replace_all is false (found %d matches)", matches)
	}

	replaced := 1
	var updated string
	if params.ReplaceAll {
		updated = strings.ReplaceAll(content, params.OldString, params.NewString)
		replaced = matches
	} else {
		updated = strings.Replace(content, params.OldString, params.NewString, 1)
	}

	if err := os.WriteFile(params.FilePath, []byte(updated), info.Mode()); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("applied %d replacement(s) in %s", replaced, params.FilePath), nil
}

// DefaultTools returns the standard tool set: bash, Read, Write, Edit.
func DefaultTools() []tool.Tool {
	return []tool.Tool{
		NewBashTool(),
		NewReadTool(),
		NewWriteTool(),
		NewEditTool(),
	}
}
