package hooks

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sengac/codelet/compaction"
	"github.com/sengac/codelet/types"
)

// LoggingHooks provides built-in logging hooks for observability.
type LoggingHooks struct {
	logger *slog.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger.
func NewLoggingHooks(logger *slog.Logger) *LoggingHooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHooks{logger: logger}
}

// Install registers all logging hooks with the registry.
func (h *LoggingHooks) Install(r *Registry) {
	r.OnBeforePrompt(h.BeforePrompt)
	r.OnAfterResponse(h.AfterResponse)
	r.OnToolCall(h.ToolCall)
	r.OnBeforeCompaction(h.BeforeCompaction)
	r.OnAfterCompaction(h.AfterCompaction)
}

// BeforePrompt logs the start of a prompt run.
func (h *LoggingHooks) BeforePrompt(ctx context.Context, sessionID string, input string) error {
	h.logger.Debug("prompt started", "session_id", sessionID, "input_len", len(input))
	return nil
}

// AfterResponse logs the completed response.
func (h *LoggingHooks) AfterResponse(ctx context.Context, sessionID string, response types.Message, usage types.Usage) error {
	h.logger.Debug("response received",
		"session_id", sessionID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens)
	return nil
}

// ToolCall logs tool execution.
func (h *LoggingHooks) ToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, isError bool) error {
	if isError {
		h.logger.Warn("tool failed", "tool", toolName, "output", preview(output))
		return nil
	}
	h.logger.Debug("tool succeeded", "tool", toolName, "output", preview(output))
	return nil
}

// BeforeCompaction logs the start of compaction.
func (h *LoggingHooks) BeforeCompaction(ctx context.Context, sessionID string) error {
	h.logger.Info("compaction started", "session_id", sessionID)
	return nil
}

// AfterCompaction logs the compaction outcome.
func (h *LoggingHooks) AfterCompaction(ctx context.Context, sessionID string, result *compaction.Result) error {
	h.logger.Info("compaction finished",
		"session_id", sessionID,
		"original_tokens", result.Metrics.OriginalTokens,
		"compacted_tokens", result.Metrics.CompactedTokens,
		"turns_summarized", result.Metrics.TurnsSummarized,
		"turns_kept", result.Metrics.TurnsKept,
		"compression_pct", result.Metrics.CompressionPercent())
	return nil
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}
