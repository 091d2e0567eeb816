// Package builtin provides ready-made tools for shell and file access.
// Tool names match the conventions coding agents expect: "bash", "Read",
// "Write", "Edit".
package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sengac/codelet/tool"
)

const (
	// DefaultBashTimeout bounds a single command execution.
	DefaultBashTimeout = 2 * time.Minute

	// maxOutputBytes caps combined stdout+stderr returned to the model.
	maxOutputBytes = 30_000
)

// BashTool executes shell commands and returns their combined output.
type BashTool struct {
	workdir string
	timeout time.Duration
}

// NewBashTool creates a bash tool running in the current directory.
func NewBashTool() *BashTool {
	return &BashTool{timeout: DefaultBashTimeout}
}

// NewBashToolWithWorkdir creates a bash tool rooted at the given directory.
func NewBashToolWithWorkdir(workdir string) *BashTool {
	return &BashTool{workdir: workdir, timeout: DefaultBashTimeout}
}

// SetTimeout overrides the default per-command timeout.
func (b *BashTool) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		b.timeout = timeout
	}
}

func (b *BashTool) Name() string {
	return "bash"
}

func (b *BashTool) Description() string {
	return "Executes a shell command and returns its combined stdout and stderr. " +
		"The working directory persists for the lifetime of the session."
}

func (b *BashTool) InputSchema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.Property{
			"command": {
				Type:        "string",
				Description: "The shell command to execute",
			},
			"timeout_seconds": {
				Type:        "number",
				Description: "Optional timeout in seconds (default 120)",
				Minimum:     ptrFloat(1),
			},
		},
		Required: []string{"command"},
	}
}

func (b *BashTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Command        string  `json:"command"`
		TimeoutSeconds float64 `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(params.Command) == "" {
		return "", fmt.Errorf("command cannot be empty")
	}

	timeout := b.timeout
	if params.TimeoutSeconds > 0 {
		timeout = time.Duration(params.TimeoutSeconds * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", params.Command)
	if b.workdir != "" {
		cmd.Dir = b.workdir
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	output := truncateOutput(buf.String())

	if ctx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("command timed out after %s", timeout)
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return output, fmt.Errorf("command exited with status %d", exitErr.ExitCode())
		}
		return output, fmt.Errorf("command failed: %w", runErr)
	}

	if output == "" {
		return "(no output)", nil
	}
	return output, nil
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... [output truncated]"
}

func ptrFloat(f float64) *float64 {
	return &f
}
