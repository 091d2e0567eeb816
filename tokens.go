package codelet

import "github.com/sengac/codelet/types"

// Threshold constants governing automatic compaction.
const (
	// CompactionThresholdRatio is the fraction of the context window at
	// which compaction triggers.
	CompactionThresholdRatio = 0.9

	// AutocompactBuffer is the headroom reserved below the context window
	// when computing the usable budget.
	AutocompactBuffer = 50_000
)

// CompactionThreshold returns the absolute token count that triggers
// compaction for the given context window.
func CompactionThreshold(contextWindow int) int {
	return int(float64(contextWindow) * CompactionThresholdRatio)
}

// AvailableContextBudget returns the usable token budget for the given
// context window after reserving the autocompact buffer. Small windows
// fall back to a fixed fraction instead of going negative.
func AvailableContextBudget(contextWindow int) int {
	if contextWindow <= AutocompactBuffer {
		return int(float64(contextWindow) * 0.8)
	}
	return contextWindow - AutocompactBuffer
}

// EstimateTokens approximates the token count of a string, rounding up.
func EstimateTokens(s string) int64 {
	return int64(types.EstimateTokens(s))
}

// TokenTracker accumulates token usage across a session. It separates
// committed usage (finished model calls) from the in-flight usage of the
// current call: each call start replaces the in-flight figures, streaming
// deltas replace only the in-flight output, and Commit folds the call into
// the cumulative totals. Not safe for concurrent use; the session lock
// covers it.
type TokenTracker struct {
	committed Usage
	inflight  Usage
	active    bool
}

// Apply records usage reported by the backend. delta=false marks a call
// start: the server-reported input and cache figures replace whatever was
// in flight, after the previous call (if any) is committed. delta=true is
// a streaming update carrying the cumulative output tokens of the current
// call.
func (t *TokenTracker) Apply(u Usage, delta bool) {
	if delta {
		t.inflight.OutputTokens = u.OutputTokens
		return
	}
	if t.active {
		t.Commit()
	}
	t.inflight = Usage{
		InputTokens:         u.InputTokens,
		CacheCreationTokens: u.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens,
		OutputTokens:        u.OutputTokens,
	}
	t.active = true
}

// Update replaces the in-flight usage with the server's authoritative
// figures for the current call, without marking a call boundary.
func (t *TokenTracker) Update(u Usage) {
	t.inflight = u
	t.active = true
}

// Commit folds the in-flight call into the cumulative totals.
func (t *TokenTracker) Commit() {
	if !t.active {
		return
	}
	t.committed = t.committed.Add(t.inflight)
	t.inflight = Usage{}
	t.active = false
}

// Total returns the combined committed and in-flight token count.
func (t *TokenTracker) Total() int64 {
	return t.committed.Total() + t.inflight.Total()
}

// Snapshot returns the combined usage as a value.
func (t *TokenTracker) Snapshot() Usage {
	return t.committed.Add(t.inflight)
}

// Reset discards all counters.
func (t *TokenTracker) Reset() {
	t.committed = Usage{}
	t.inflight = Usage{}
	t.active = false
}

// SetBaseline replaces the counters with an estimated input-only figure.
// Used after history restore and compaction, when the real server-side
// accounting no longer matches the rebuilt conversation.
func (t *TokenTracker) SetBaseline(inputTokens int64) {
	t.committed = Usage{InputTokens: inputTokens}
	t.inflight = Usage{}
	t.active = false
}
