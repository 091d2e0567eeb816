package codelet

import "testing"

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{name: "empty", in: "", want: 0},
		{name: "one byte", in: "a", want: 1},
		{name: "exactly four bytes", in: "abcd", want: 1},
		{name: "five bytes rounds up", in: "abcde", want: 2},
		{name: "eight bytes", in: "abcdefgh", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.in); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompactionThreshold(t *testing.T) {
	if got := CompactionThreshold(200_000); got != 180_000 {
		t.Errorf("CompactionThreshold(200000) = %d, want 180000", got)
	}
	if got := CompactionThreshold(128_000); got != 115_200 {
		t.Errorf("CompactionThreshold(128000) = %d, want 115200", got)
	}
}

func TestAvailableContextBudget(t *testing.T) {
	tests := []struct {
		name   string
		window int
		want   int
	}{
		{name: "large window subtracts buffer", window: 200_000, want: 150_000},
		{name: "window at buffer uses fraction", window: 50_000, want: 40_000},
		{name: "small window uses fraction", window: 10_000, want: 8_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AvailableContextBudget(tt.window); got != tt.want {
				t.Errorf("AvailableContextBudget(%d) = %d, want %d", tt.window, got, tt.want)
			}
		})
	}
}

func TestTokenTracker_CallBoundaries(t *testing.T) {
	var tr TokenTracker

	// First call: estimate, authoritative figures, streaming output.
	tr.Apply(Usage{InputTokens: 500}, false)
	tr.Update(Usage{InputTokens: 500})
	tr.Apply(Usage{OutputTokens: 50}, true)

	if got := tr.Total(); got != 550 {
		t.Fatalf("total after first call = %d, want 550", got)
	}

	// Second call start commits the first.
	tr.Apply(Usage{InputTokens: 520}, false)
	tr.Update(Usage{InputTokens: 520})
	tr.Apply(Usage{OutputTokens: 80}, true)
	tr.Commit()

	// 500+50 from the first call plus 520+80 from the second, never
	// double-counted.
	if got := tr.Total(); got != 1150 {
		t.Errorf("total after both calls = %d, want 1150", got)
	}

	snap := tr.Snapshot()
	if snap.InputTokens != 1020 || snap.OutputTokens != 130 {
		t.Errorf("snapshot = %+v, want input 1020, output 130", snap)
	}
}

func TestTokenTracker_UpdateReplacesEstimate(t *testing.T) {
	var tr TokenTracker

	tr.Apply(Usage{InputTokens: 1000}, false) // estimate
	tr.Update(Usage{InputTokens: 750, CacheReadTokens: 100})

	if got := tr.Total(); got != 850 {
		t.Errorf("total = %d, want 850 (authoritative replaces estimate)", got)
	}
}

func TestTokenTracker_DeltaReplacesOutput(t *testing.T) {
	var tr TokenTracker

	tr.Apply(Usage{InputTokens: 100}, false)
	tr.Apply(Usage{OutputTokens: 10}, true)
	tr.Apply(Usage{OutputTokens: 25}, true)
	tr.Apply(Usage{OutputTokens: 40}, true)

	// Deltas carry cumulative output, so only the last one counts.
	if got := tr.Total(); got != 140 {
		t.Errorf("total = %d, want 140", got)
	}
}

func TestTokenTracker_CommitIdempotent(t *testing.T) {
	var tr TokenTracker

	tr.Apply(Usage{InputTokens: 100}, false)
	tr.Commit()
	tr.Commit()

	if got := tr.Total(); got != 100 {
		t.Errorf("total = %d, want 100", got)
	}
}

func TestTokenTracker_Reset(t *testing.T) {
	var tr TokenTracker

	tr.Apply(Usage{InputTokens: 100}, false)
	tr.Commit()
	tr.Reset()

	if got := tr.Total(); got != 0 {
		t.Errorf("total after reset = %d, want 0", got)
	}
}

func TestTokenTracker_SetBaseline(t *testing.T) {
	var tr TokenTracker

	tr.Apply(Usage{InputTokens: 5000, OutputTokens: 300}, false)
	tr.SetBaseline(1200)

	if got := tr.Total(); got != 1200 {
		t.Errorf("total after baseline = %d, want 1200", got)
	}
	snap := tr.Snapshot()
	if snap.OutputTokens != 0 {
		t.Errorf("baseline should zero output tokens, got %d", snap.OutputTokens)
	}
}
