package compaction

import (
	"strings"

	"github.com/sengac/codelet/types"
)

// Logger is the minimal logging interface the compactor needs.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const (
	anchorLineMax   = 500
	outcomeLineMax  = 150
	outcomesHeading = "Key outcomes:"
)

// Result is the output of a compaction run.
type Result struct {
	// Summary is the replacement text for the summarized turns.
	Summary string

	// KeptTurns survive verbatim, boundary turn first.
	KeptTurns []Turn

	// Context is the preservation context extracted from the whole
	// conversation.
	Context Context

	// Anchors are the anchors considered for the boundary decision.
	Anchors []Anchor

	// Metrics describes the compression achieved.
	Metrics Metrics
}

// Compactor condenses conversation history around anchor points.
type Compactor struct {
	cfg      Config
	detector *Detector
	logger   Logger
}

// NewCompactor creates a compactor. A nil config selects defaults; a nil
// logger disables logging.
func NewCompactor(cfg *Config, logger Logger) (*Compactor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}

	return &Compactor{
		cfg:      *cfg,
		detector: &Detector{MinConfidence: cfg.MinAnchorConfidence},
		logger:   logger,
	}, nil
}

// Compact summarizes the conversation up to the most recent anchor,
// keeping the trailing turns verbatim. Returns ErrNothingToCompact when
// the conversation fits within the kept suffix.
func (c *Compactor) Compact(turns []Turn) (*Result, error) {
	if len(turns) == 0 {
		return nil, WrapError("Compact", ErrNothingToCompact)
	}
	if len(turns) <= c.cfg.KeepRecentTurns {
		return nil, WrapError("Compact", ErrNothingToCompact)
	}

	// Only turns outside the kept suffix are eligible for summarization
	prefixLen := len(turns) - c.cfg.KeepRecentTurns
	prefix := turns[:prefixLen]

	anchors := c.detector.DetectHistorical(prefix)
	anchors = c.detector.EnsureSynthetic(anchors, turns)

	// Boundary is the most recent anchor inside the eligible prefix.
	// Everything strictly before it is summarized.
	boundary := -1
	for _, anchor := range anchors {
		if anchor.TurnIndex < prefixLen && anchor.TurnIndex > boundary {
			boundary = anchor.TurnIndex
		}
	}

	var summarized, kept []Turn
	if boundary >= 0 {
		summarized = turns[:boundary]
		kept = turns[boundary:]
	} else {
		summarized = prefix
		kept = turns[prefixLen:]
	}

	ctx := ExtractContext(turns)
	summary := c.buildSummary(ctx, summarized, anchors)

	original := EstimateTurnsTokens(turns)
	compacted := types.EstimateTokens(summary) + EstimateTurnsTokens(kept)
	ratio := 0.0
	if original > 0 {
		ratio = clamp01(1 - float64(compacted)/float64(original))
	}

	metrics := Metrics{
		OriginalTokens:   original,
		CompactedTokens:  compacted,
		CompressionRatio: ratio,
		TurnsSummarized:  len(summarized),
		TurnsKept:        len(kept),
		AnchorsUsed:      len(anchors),
	}

	if ratio < c.cfg.MinCompressionRatio {
		c.logger.Warn("marginal compression",
			"ratio", ratio,
			"min_ratio", c.cfg.MinCompressionRatio,
			"original_tokens", original,
			"compacted_tokens", compacted)
	}

	c.logger.Info("conversation compacted",
		"turns_summarized", len(summarized),
		"turns_kept", len(kept),
		"anchors", len(anchors),
		"compression_ratio", ratio)

	return &Result{
		Summary:   summary,
		KeptTurns: kept,
		Context:   ctx,
		Anchors:   anchors,
		Metrics:   metrics,
	}, nil
}

// buildSummary renders the preservation context followed by one outcome
// line per summarized turn.
func (c *Compactor) buildSummary(ctx Context, summarized []Turn, anchors []Anchor) string {
	anchored := make(map[int]bool, len(anchors))
	for _, anchor := range anchors {
		anchored[anchor.TurnIndex] = true
	}

	var sb strings.Builder
	sb.WriteString(ctx.Format())
	sb.WriteString("\n\n")
	sb.WriteString(outcomesHeading)
	sb.WriteString("\n")

	for _, turn := range summarized {
		sb.WriteString(outcomeLine(turn, anchored[turn.Index]))
		sb.WriteString("\n")
	}

	return sb.String()
}

// outcomeLine renders one summarized turn. Anchor turns keep more of
// their response; regular turns get a success marker and the files they
// touched.
func outcomeLine(turn Turn, isAnchor bool) string {
	if isAnchor {
		return "[ANCHOR] " + truncate(turn.Response, anchorLineMax)
	}

	marker := "✓ "
	if !turn.Success {
		marker = "✗ "
	}

	var modified []string
	seen := make(map[string]bool)
	for _, call := range turn.ToolCalls {
		if call.Name != "Edit" && call.Name != "Write" {
			continue
		}
		name := call.Filename()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		modified = append(modified, name)
	}

	line := marker
	if len(modified) > 0 {
		line += "Modified " + strings.Join(modified, ", ") + ": "
	}
	line += truncate(firstSentence(turn.Response), outcomeLineMax)
	return line
}

// firstSentence returns the text up to and including the first period,
// or the whole string when there is none.
func firstSentence(s string) string {
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return s[:idx+1]
	}
	return s
}
