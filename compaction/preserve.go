package compaction

import (
	"strings"
)

// BuildStatus is the last observed outcome of test runs in the
// conversation.
type BuildStatus string

const (
	BuildUnknown BuildStatus = "Unknown"
	BuildPassing BuildStatus = "Passing"
	BuildFailing BuildStatus = "Failing"
)

// Context captures the working state that must survive compaction.
type Context struct {
	// ActiveFiles are files touched by Edit/Write calls, in first-seen
	// order.
	ActiveFiles []string

	// CurrentGoals are the most recent user-stated goals, oldest first.
	CurrentGoals []string

	// ErrorStates are the first lines of failed tool outputs.
	ErrorStates []string

	// BuildStatus reflects the most recent test outcome.
	BuildStatus BuildStatus

	// LastUserIntent is the most recent non-empty user input.
	LastUserIntent string
}

var goalMarkers = []string{
	"help me",
	"i want to",
	"i need to",
	"please",
}

const (
	maxGoals       = 3
	goalMaxLen     = 100
	errorLineMax   = 100
	intentMaxLen   = 200
	fallbackIntent = "Continue conversation"
)

// ExtractContext derives preservation context from the entire
// conversation.
func ExtractContext(turns []Turn) Context {
	ctx := Context{BuildStatus: BuildUnknown}

	seenFiles := make(map[string]bool)
	var goals []string

	for _, turn := range turns {
		for _, call := range turn.ToolCalls {
			if call.Name != "Edit" && call.Name != "Write" {
				continue
			}
			name := call.Filename()
			if name == "" || seenFiles[name] {
				continue
			}
			seenFiles[name] = true
			ctx.ActiveFiles = append(ctx.ActiveFiles, name)
		}

		if goal, ok := extractGoal(turn.UserInput); ok {
			goals = append(goals, goal)
		}

		for _, result := range turn.ToolResults {
			if !result.Success {
				ctx.ErrorStates = append(ctx.ErrorStates, firstLine(result.Output, errorLineMax))
			}

			output := strings.ToLower(result.Output)
			if strings.Contains(output, "test") {
				switch {
				case strings.Contains(output, "pass") || strings.Contains(output, "success"):
					ctx.BuildStatus = BuildPassing
				case strings.Contains(output, "fail") || strings.Contains(output, "error"):
					ctx.BuildStatus = BuildFailing
				}
			}
		}

		if input := strings.TrimSpace(turn.UserInput); input != "" {
			ctx.LastUserIntent = truncate(input, intentMaxLen)
		}
	}

	// Keep the most recent goals, chronological order
	if len(goals) > maxGoals {
		goals = goals[len(goals)-maxGoals:]
	}
	ctx.CurrentGoals = goals

	if ctx.LastUserIntent == "" {
		ctx.LastUserIntent = fallbackIntent
	}

	return ctx
}

// extractGoal returns the goal phrase of a user input: text up to the
// first period, capped at 100 chars. Only inputs carrying a goal marker
// qualify.
func extractGoal(input string) (string, bool) {
	lower := strings.ToLower(input)
	matched := false
	for _, marker := range goalMarkers {
		if strings.Contains(lower, marker) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	goal := input
	if idx := strings.Index(goal, "."); idx >= 0 {
		goal = goal[:idx]
	}
	return truncate(strings.TrimSpace(goal), goalMaxLen), true
}

// Format renders the context as the summary header. Empty sections are
// omitted entirely, as is an unknown build status.
func (c Context) Format() string {
	var lines []string

	if len(c.ActiveFiles) > 0 {
		lines = append(lines, "Active files: "+strings.Join(c.ActiveFiles, ", "))
	}
	if len(c.CurrentGoals) > 0 {
		lines = append(lines, "Goals: "+strings.Join(c.CurrentGoals, "; "))
	}
	if c.BuildStatus != BuildUnknown {
		lines = append(lines, "Build: "+strings.ToLower(string(c.BuildStatus)))
	}

	return strings.Join(lines, "\n")
}

func firstLine(s string, max int) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return truncate(s, max)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
