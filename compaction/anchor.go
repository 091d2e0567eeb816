package compaction

import (
	"fmt"
	"strings"
)

// AnchorType categorizes what a detected anchor represents.
type AnchorType string

const (
	// ErrorResolution marks a turn where a previously failing operation
	// was confirmed fixed.
	ErrorResolution AnchorType = "error_resolution"

	// TaskCompletion marks a turn where a unit of work was finished:
	// code changes verified by tests, or research synthesized from
	// search results.
	TaskCompletion AnchorType = "task_completion"

	// ConversationMilestone marks a turn where a shell command reported
	// a notable outcome (install, build, completion).
	ConversationMilestone AnchorType = "conversation_milestone"

	// UserCheckpoint is the synthetic fallback anchor placed at the end
	// of a conversation that produced no natural anchors.
	UserCheckpoint AnchorType = "user_checkpoint"
)

// Anchor is a point in the conversation worth preserving across
// compaction.
type Anchor struct {
	TurnIndex   int
	Type        AnchorType
	Weight      float64
	Confidence  float64
	Description string
	Synthetic   bool
}

// Detector finds anchors in conversation turns. Patterns are checked in
// a fixed priority order; the first match wins for a turn.
type Detector struct {
	// MinConfidence filters out matches below this confidence.
	MinConfidence float64
}

// NewDetector creates a detector with the default confidence floor.
func NewDetector() *Detector {
	return &Detector{MinConfidence: DefaultMinAnchorConfidence}
}

var resolutionMarkers = []string{
	"fixed",
	"resolved",
	"working now",
	"builds successfully",
	"tests pass",
}

var synthesisMarkers = []string{
	"Based on",
	"According to",
	"search results show",
	"search results,",
}

var milestoneKeywords = []string{
	"successfully",
	"installed",
	"built",
	"compiled",
	"completed",
}

// DetectTurn returns the highest-priority anchor for the turn, or nil
// when no pattern matches at or above MinConfidence.
func (d *Detector) DetectTurn(t Turn) *Anchor {
	for _, detect := range []func(Turn) *Anchor{
		detectErrorResolution,
		detectCodeCompletion,
		detectSearchSynthesis,
		detectShellMilestone,
	} {
		anchor := detect(t)
		if anchor == nil {
			continue
		}
		if anchor.Confidence < d.MinConfidence {
			continue
		}
		anchor.TurnIndex = t.Index
		return anchor
	}
	return nil
}

// DetectHistorical runs per-turn detection over the whole conversation,
// in ascending turn order.
func (d *Detector) DetectHistorical(turns []Turn) []Anchor {
	var anchors []Anchor
	for _, t := range turns {
		if anchor := d.DetectTurn(t); anchor != nil {
			anchors = append(anchors, *anchor)
		}
	}
	return anchors
}

// EnsureSynthetic appends a synthetic checkpoint at the last turn when
// the conversation produced no natural anchors. With any anchor present,
// or no turns at all, the input is returned unchanged.
func (d *Detector) EnsureSynthetic(anchors []Anchor, turns []Turn) []Anchor {
	if len(anchors) > 0 || len(turns) == 0 {
		return anchors
	}

	last := turns[len(turns)-1]
	return append(anchors, Anchor{
		TurnIndex:   last.Index,
		Type:        UserCheckpoint,
		Weight:      0.7,
		Confidence:  0.8,
		Description: fmt.Sprintf("synthetic checkpoint at turn %d", last.Index),
		Synthetic:   true,
	})
}

// detectErrorResolution matches turns where a tool failure was followed
// by a response confirming the fix.
func detectErrorResolution(t Turn) *Anchor {
	hadFailure := false
	for _, result := range t.ToolResults {
		if !result.Success {
			hadFailure = true
			break
		}
	}
	if !hadFailure {
		return nil
	}

	response := strings.ToLower(t.Response)
	for _, marker := range resolutionMarkers {
		if strings.Contains(response, marker) {
			return &Anchor{
				Type:        ErrorResolution,
				Weight:      0.9,
				Confidence:  0.95,
				Description: "error resolved: " + marker,
			}
		}
	}
	return nil
}

// detectCodeCompletion matches turns where a file edit succeeded and a
// tool output reports passing tests.
func detectCodeCompletion(t Turn) *Anchor {
	modified := false
	for _, call := range t.ToolCalls {
		if call.Name != "Edit" && call.Name != "Write" {
			continue
		}
		if resultSucceeded(t, call.ID) {
			modified = true
			break
		}
	}
	if !modified {
		return nil
	}

	for _, result := range t.ToolResults {
		if !result.Success {
			continue
		}
		output := strings.ToLower(result.Output)
		if strings.Contains(output, "test") &&
			(strings.Contains(output, "pass") || strings.Contains(output, "success")) {
			return &Anchor{
				Type:        TaskCompletion,
				Weight:      0.8,
				Confidence:  0.92,
				Description: "code change verified by tests",
			}
		}
	}
	return nil
}

// detectSearchSynthesis matches turns where a search ran and the
// response synthesizes its results.
func detectSearchSynthesis(t Turn) *Anchor {
	searched := false
	for _, call := range t.ToolCalls {
		if call.Name == "web_search" || call.Name == "WebSearch" {
			searched = true
			break
		}
	}
	if !searched {
		return nil
	}

	for _, marker := range synthesisMarkers {
		if strings.Contains(t.Response, marker) {
			return &Anchor{
				Type:        TaskCompletion,
				Weight:      0.75,
				Confidence:  0.85,
				Description: "search results synthesized",
			}
		}
	}
	return nil
}

// detectShellMilestone matches turns where a shell command reported a
// milestone outcome.
func detectShellMilestone(t Turn) *Anchor {
	for _, call := range t.ToolCalls {
		if call.Name != "bash" && call.Name != "Bash" {
			continue
		}
		for _, result := range t.ToolResults {
			if result.CallID != call.ID || !result.Success {
				continue
			}
			output := strings.ToLower(result.Output)
			for _, keyword := range milestoneKeywords {
				if strings.Contains(output, keyword) {
					return &Anchor{
						Type:        ConversationMilestone,
						Weight:      0.8,
						Confidence:  0.88,
						Description: "shell milestone: " + keyword,
					}
				}
			}
		}
	}
	return nil
}

// resultSucceeded reports whether the result for the given call ID
// exists and succeeded. A call without a recorded result counts as
// successful.
func resultSucceeded(t Turn, callID string) bool {
	for _, result := range t.ToolResults {
		if result.CallID == callID {
			return result.Success
		}
	}
	return true
}
