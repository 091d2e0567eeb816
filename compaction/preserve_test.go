package compaction

import (
	"encoding/json"
	"strings"
	"testing"
)

func editCall(id, path string) ToolCall {
	params, _ := json.Marshal(map[string]string{"file_path": path})
	return ToolCall{ID: id, Name: "Edit", Parameters: params}
}

func TestExtractContext_ActiveFiles(t *testing.T) {
	turns := []Turn{
		{Index: 0, ToolCalls: []ToolCall{
			editCall("1", "/src/server.go"),
			{ID: "2", Name: "Write", Parameters: json.RawMessage(`{"file_path": "/src/config.go"}`)},
		}},
		{Index: 1, ToolCalls: []ToolCall{
			editCall("3", "/src/server.go"), // duplicate
			{ID: "4", Name: "bash", Parameters: json.RawMessage(`{"command": "go test"}`)},
		}},
	}

	ctx := ExtractContext(turns)

	want := []string{"server.go", "config.go"}
	if len(ctx.ActiveFiles) != len(want) {
		t.Fatalf("ActiveFiles = %v, want %v", ctx.ActiveFiles, want)
	}
	for i := range want {
		if ctx.ActiveFiles[i] != want[i] {
			t.Errorf("ActiveFiles[%d] = %q, want %q", i, ctx.ActiveFiles[i], want[i])
		}
	}
}

func TestExtractContext_Goals(t *testing.T) {
	turns := []Turn{
		{Index: 0, UserInput: "Help me set up the project. Then we do more."},
		{Index: 1, UserInput: "just looking around"},
		{Index: 2, UserInput: "I want to add caching"},
		{Index: 3, UserInput: "Please wire up metrics"},
		{Index: 4, UserInput: "I need to ship this today. Quickly."},
	}

	ctx := ExtractContext(turns)

	// Only the 3 most recent goals, chronological
	want := []string{"I want to add caching", "Please wire up metrics", "I need to ship this today"}
	if len(ctx.CurrentGoals) != 3 {
		t.Fatalf("CurrentGoals = %v, want 3 entries", ctx.CurrentGoals)
	}
	for i := range want {
		if ctx.CurrentGoals[i] != want[i] {
			t.Errorf("CurrentGoals[%d] = %q, want %q", i, ctx.CurrentGoals[i], want[i])
		}
	}
}

func TestExtractContext_GoalTruncation(t *testing.T) {
	long := "please " + strings.Repeat("x", 200)
	ctx := ExtractContext([]Turn{{UserInput: long}})

	if len(ctx.CurrentGoals) != 1 {
		t.Fatalf("Expected one goal, got %v", ctx.CurrentGoals)
	}
	if len(ctx.CurrentGoals[0]) != 100 {
		t.Errorf("Goal length = %d, want 100", len(ctx.CurrentGoals[0]))
	}
}

func TestExtractContext_ErrorStates(t *testing.T) {
	turns := []Turn{
		{Index: 0, ToolResults: []ToolResult{
			{CallID: "1", Output: "compile error: undefined symbol\nfull stack follows", Success: false},
			{CallID: "2", Output: "fine", Success: true},
		}},
	}

	ctx := ExtractContext(turns)

	if len(ctx.ErrorStates) != 1 {
		t.Fatalf("ErrorStates = %v, want 1 entry", ctx.ErrorStates)
	}
	if ctx.ErrorStates[0] != "compile error: undefined symbol" {
		t.Errorf("ErrorStates[0] = %q", ctx.ErrorStates[0])
	}
}

func TestExtractContext_BuildStatusLastWriterWins(t *testing.T) {
	turns := []Turn{
		{Index: 0, ToolResults: []ToolResult{
			{CallID: "1", Output: "test run: 3 failed", Success: false},
		}},
		{Index: 1, ToolResults: []ToolResult{
			{CallID: "2", Output: "all tests pass", Success: true},
		}},
	}

	if got := ExtractContext(turns).BuildStatus; got != BuildPassing {
		t.Errorf("BuildStatus = %s, want %s", got, BuildPassing)
	}

	// Reverse order flips the outcome
	turns[0], turns[1] = turns[1], turns[0]
	if got := ExtractContext(turns).BuildStatus; got != BuildFailing {
		t.Errorf("BuildStatus = %s, want %s", got, BuildFailing)
	}

	// Output without "test" never moves the status
	neutral := []Turn{{ToolResults: []ToolResult{
		{CallID: "1", Output: "build error somewhere", Success: false},
	}}}
	if got := ExtractContext(neutral).BuildStatus; got != BuildUnknown {
		t.Errorf("BuildStatus = %s, want %s", got, BuildUnknown)
	}
}

func TestExtractContext_LastUserIntent(t *testing.T) {
	turns := []Turn{
		{Index: 0, UserInput: "first thing"},
		{Index: 1, UserInput: "   "},
		{Index: 2, UserInput: "final request"},
	}

	ctx := ExtractContext(turns)
	if ctx.LastUserIntent != "final request" {
		t.Errorf("LastUserIntent = %q", ctx.LastUserIntent)
	}

	empty := ExtractContext([]Turn{{Response: "assistant only"}})
	if empty.LastUserIntent != "Continue conversation" {
		t.Errorf("Fallback intent = %q", empty.LastUserIntent)
	}

	long := ExtractContext([]Turn{{UserInput: strings.Repeat("y", 300)}})
	if len(long.LastUserIntent) != 200 {
		t.Errorf("Intent length = %d, want 200", len(long.LastUserIntent))
	}
}

func TestContext_Format(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want string
	}{
		{
			name: "all sections",
			ctx: Context{
				ActiveFiles:  []string{"a.go", "b.go"},
				CurrentGoals: []string{"g1", "g2"},
				BuildStatus:  BuildPassing,
			},
			want: "Active files: a.go, b.go\nGoals: g1; g2\nBuild: passing",
		},
		{
			name: "unknown build omitted",
			ctx: Context{
				ActiveFiles: []string{"a.go"},
				BuildStatus: BuildUnknown,
			},
			want: "Active files: a.go",
		},
		{
			name: "failing build only",
			ctx:  Context{BuildStatus: BuildFailing},
			want: "Build: failing",
		},
		{
			name: "empty context",
			ctx:  Context{BuildStatus: BuildUnknown},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Format(); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}
