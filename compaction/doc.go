// Package compaction condenses conversation history around anchor points.
//
// When a conversation approaches the model's context window, older turns
// are collapsed into a structured summary while recent turns survive
// verbatim. The boundary between the two is chosen by anchor detection:
// turns where an error was resolved, a code change was verified, search
// results were synthesized, or a shell command reported a milestone. A
// conversation with no natural anchors gets a synthetic checkpoint at its
// last turn.
//
// # Usage
//
// Create a Compactor and feed it conversation turns:
//
//	compactor, err := compaction.NewCompactor(&compaction.Config{
//	    KeepRecentTurns:     3,   // trailing turns kept verbatim
//	    MinAnchorConfidence: 0.9, // anchor confidence floor
//	    MinCompressionRatio: 0.6, // below this, log a warning
//	}, logger)
//
//	turns := compaction.TurnsFromMessages(messages)
//	result, err := compactor.Compact(turns)
//
// The Result carries the summary text, the kept turns, the preservation
// context (active files, goals, error states, build status), the anchors
// found, and compression metrics.
package compaction
