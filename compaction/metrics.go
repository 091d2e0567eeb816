package compaction

// Metrics describes the outcome of a compaction run.
type Metrics struct {
	// OriginalTokens is the estimated size of the full conversation.
	OriginalTokens int

	// CompactedTokens is the estimated size of the summary plus kept
	// turns.
	CompactedTokens int

	// CompressionRatio is 1 - compacted/original, clamped to [0, 1].
	CompressionRatio float64

	// TurnsSummarized is how many turns were collapsed into the summary.
	TurnsSummarized int

	// TurnsKept is how many turns survive verbatim.
	TurnsKept int

	// AnchorsUsed is how many anchors informed the boundary decision.
	AnchorsUsed int
}

// CompressionPercent returns the compression ratio on a 0-100 scale for
// display.
func (m Metrics) CompressionPercent() float64 {
	return m.CompressionRatio * 100
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
