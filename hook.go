package codelet

import (
	"context"
	"sync"

	"github.com/sengac/codelet/types"
)

// CompactionHook watches token usage reported by the backend during a
// live stream and cancels the stream when the cumulative total meets or
// exceeds the compaction threshold. Cancelling mid-stream is deliberate:
// compaction must run before the next large prompt goes out, not after
// the current call finishes growing the history further.
//
// The hook also guards the session's TokenTracker. The backend goroutine
// writes usage through it while the prompt loop reads snapshots, so every
// access takes the hook's mutex. The lock is only held for the update
// itself, never across a blocking call.
type CompactionHook struct {
	mu        sync.Mutex
	tracker   *TokenTracker
	threshold int64
	cancel    context.CancelCauseFunc
	triggered bool
}

// NewCompactionHook creates a hook over the given tracker.
func NewCompactionHook(tracker *TokenTracker) *CompactionHook {
	return &CompactionHook{tracker: tracker}
}

// Arm prepares the hook for a new stream: the cancel function of the
// stream context and the absolute token threshold. Clears the triggered
// flag from any previous stream.
func (h *CompactionHook) Arm(cancel context.CancelCauseFunc, threshold int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancel = cancel
	h.threshold = threshold
	h.triggered = false
}

// Disarm detaches the hook from the finished stream so stale usage
// callbacks cannot cancel a later one.
func (h *CompactionHook) Disarm() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancel = nil
	h.threshold = 0
}

// OnCallStart implements backend.UsageHook. A zero usage carries the
// pre-call estimate and opens a new call in the tracker, committing the
// previous one; a non-zero usage is the server's authoritative accounting
// for the call already in flight and replaces the estimate in place.
// Returns ErrCompactionRequired, after cancelling the stream context,
// when the resulting total meets or exceeds the threshold.
func (h *CompactionHook) OnCallStart(estimatedInput int, u types.Usage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if u == (types.Usage{}) {
		h.tracker.Apply(Usage{InputTokens: int64(estimatedInput)}, false)
	} else {
		h.tracker.Update(u)
	}

	if h.threshold > 0 && h.tracker.Total() >= h.threshold {
		h.triggered = true
		if h.cancel != nil {
			h.cancel(ErrCompactionRequired)
		}
		return ErrCompactionRequired
	}
	return nil
}

// OnOutputDelta implements backend.UsageHook. The count is the cumulative
// output of the current call and replaces the previous in-flight figure.
func (h *CompactionHook) OnOutputDelta(outputTokens int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracker.Apply(Usage{OutputTokens: outputTokens}, true)
}

// Triggered reports whether this hook cancelled the current stream. The
// prompt loop uses it alongside the cancellation cause to tell a
// compaction cancel from a genuine backend error.
func (h *CompactionHook) Triggered() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.triggered
}

// Commit folds the in-flight call into the cumulative totals.
func (h *CompactionHook) Commit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracker.Commit()
}

// Total returns the combined committed and in-flight token count.
func (h *CompactionHook) Total() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracker.Total()
}

// Snapshot returns the tracker state as a value.
func (h *CompactionHook) Snapshot() Usage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracker.Snapshot()
}

// Reset discards all token counters.
func (h *CompactionHook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracker.Reset()
}

// SetBaseline replaces the counters with an estimated input-only figure,
// used after compaction and history restore.
func (h *CompactionHook) SetBaseline(inputTokens int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracker.SetBaseline(inputTokens)
}
