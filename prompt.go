package codelet

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sengac/codelet/backend"
	"github.com/sengac/codelet/streaming"
)

// errCompactAndRetry is an internal signal from the stream loop to Prompt
// that the compaction hook cancelled the stream. Never surfaced to sinks.
var errCompactAndRetry = errors.New("compact and retry")

// toolResultPreviewMax caps the tool output preview on ToolResult chunks.
const toolResultPreviewMax = 500

// Prompt sends user input to the active backend and streams the response
// to sink as chunks. Every call delivers exactly one terminal chunk
// (Done, Error or Interrupted), always last. The session lock is held
// for the full duration, so concurrent Prompt, Compact and SwitchBackend
// calls serialize.
//
// When the compaction hook cancels the stream at the token threshold,
// Prompt compacts the conversation and transparently retries the same
// input exactly once; a second threshold breach on the retry surfaces as
// an Error chunk.
func (s *Session) Prompt(ctx context.Context, input string, sink streaming.Sink) error {
	if strings.TrimSpace(input) == "" {
		err := NewSessionErrorWithID("Prompt", s.id, ErrEmptyInput)
		sink(&streaming.Error{Err: err})
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.setState(StateStreaming)
	defer s.setState(StateIdle)
	s.interrupted.Store(false)

	if err := s.hooks.TriggerBeforePrompt(ctx, s.id, input); err != nil {
		wrapped := NewSessionErrorWithID("Prompt", s.id, err)
		sink(&streaming.Error{Err: wrapped})
		return wrapped
	}

	threshold := int64(CompactionThreshold(s.manager.Current().ContextWindow()))

	// Pre-flight: compact before opening the stream when the history is
	// already at the threshold.
	if len(s.messages) > 0 && s.hook.Total() >= threshold {
		sink(&streaming.Status{Message: "context window nearly full, compacting conversation"})
		if _, err := s.compactLocked(ctx); err != nil {
			sink(&streaming.Error{Err: err})
			return err
		}
	}

	s.messages = append(s.messages, NewUserMessage(input))

	for attempt := 0; ; attempt++ {
		err := s.streamOnce(ctx, sink)
		if !errors.Is(err, errCompactAndRetry) {
			return err
		}
		if attempt > 0 {
			// The retried stream breached the threshold again; another
			// compaction round will not help.
			wrapped := NewSessionErrorWithID("Prompt", s.id, ErrCompactionRequired).
				WithContext("reason", "threshold breached again after compaction")
			sink(&streaming.Error{Err: wrapped})
			return wrapped
		}

		sink(&streaming.Status{Message: "context window nearly full, compacting conversation"})

		// The trailing user message was never answered; compact without
		// it, then re-append so the retried stream answers it.
		s.popUnansweredInput(input)
		if _, err := s.compactLocked(ctx); err != nil {
			sink(&streaming.Error{Err: err})
			return err
		}
		s.messages = append(s.messages, NewUserMessage(input))
	}
}

// streamOnce runs one backend stream to its terminal event. Returns
// errCompactAndRetry when the compaction hook cancelled the stream;
// every other outcome has already delivered its terminal chunk.
func (s *Session) streamOnce(ctx context.Context, sink streaming.Sink) error {
	active := s.manager.Current()
	window := active.ContextWindow()
	threshold := int64(CompactionThreshold(window))

	streamCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	s.hook.Arm(cancel, threshold)
	defer s.hook.Disarm()

	events, err := active.Stream(streamCtx, backend.Request{
		System:    s.cfg.systemPrompt,
		Messages:  append([]Message(nil), s.messages...),
		Tools:     s.cfg.tools,
		MaxTokens: s.cfg.maxTokens,
		Hook:      s.hook,
	})
	if err != nil {
		wrapped := NewSessionErrorWithID("Prompt", s.id, err)
		sink(&streaming.Error{Err: wrapped})
		return wrapped
	}

	batcher := streaming.NewBatcher(sink)
	var partial strings.Builder
	toolInputs := make(map[string]json.RawMessage)

	ticker := time.NewTicker(s.cfg.statusInterval)
	defer ticker.Stop()

	tokenUpdate := func() *streaming.TokenUpdate {
		return &streaming.TokenUpdate{
			Usage:         s.hook.Snapshot(),
			ContextWindow: window,
			Threshold:     int(threshold),
		}
	}

	interrupt := func() {
		cancel(ErrInterrupted)
		drainEvents(events)
		s.flushPartialTurn(partial.String())
		s.hook.Commit()
		batcher.Emit(&streaming.Interrupted{QueuedInputs: s.DrainQueue()})
	}

	for {
		// Interrupt has the highest priority: checked before the next
		// chunk is dispatched, so cancellation lands on a chunk boundary
		// and history is only ever truncated at a turn boundary.
		if s.interrupted.Load() {
			interrupt()
			return nil
		}

		select {
		case ev, ok := <-events:
			if !ok {
				wrapped := NewSessionErrorWithID("Prompt", s.id,
					errors.New("backend stream ended without a terminal event"))
				batcher.Emit(&streaming.Error{Err: wrapped})
				return wrapped
			}

			switch e := ev.(type) {
			case *backend.CallStarted:
				batcher.Emit(tokenUpdate())

			case *backend.TextDelta:
				partial.WriteString(e.Text)
				batcher.WriteText(e.Text)

			case *backend.ToolCallEvent:
				toolInputs[e.ID] = e.Input
				batcher.Emit(&streaming.ToolCall{ID: e.ID, Name: e.Name, Input: e.Input})

			case *backend.ToolResultEvent:
				if err := s.hooks.TriggerToolCall(ctx, e.Name, toolInputs[e.ID], e.Output, e.IsError); err != nil {
					s.logger.Warn("tool-call hook failed",
						"session_id", s.id, "tool", e.Name, "error", err)
				}
				batcher.Emit(&streaming.ToolResult{
					ID:      e.ID,
					Name:    e.Name,
					Output:  truncatePreview(e.Output, toolResultPreviewMax),
					IsError: e.IsError,
				})

			case *backend.OutputDelta:
				batcher.Emit(tokenUpdate())

			case *backend.Final:
				s.hook.Commit()
				s.messages = append(s.messages, e.Message)
				batcher.Flush()
				usage := s.hook.Snapshot()
				sink(&streaming.Done{Response: e.Message.Text(), Usage: usage})
				if err := s.hooks.TriggerAfterResponse(ctx, s.id, e.Message, usage); err != nil {
					s.logger.Warn("after-response hook failed",
						"session_id", s.id, "error", err)
				}
				// The finished turn may itself have pushed usage over the
				// threshold; compact now rather than on the next prompt.
				if s.hook.Total() >= threshold {
					if _, err := s.compactLocked(ctx); err != nil {
						s.logger.Warn("post-response compaction failed",
							"session_id", s.id, "error", err)
					}
				}
				return nil

			case *backend.Failure:
				if s.isCompactionCancel(streamCtx, e.Err) {
					return errCompactAndRetry
				}
				if errors.Is(e.Err, ErrInterrupted) ||
					errors.Is(context.Cause(streamCtx), ErrInterrupted) {
					interrupt()
					return nil
				}
				wrapped := NewSessionErrorWithID("Prompt", s.id, e.Err)
				batcher.Emit(&streaming.Error{Err: wrapped})
				return wrapped
			}

		case <-s.wake:
			// Interrupt flag is re-checked at the top of the loop.

		case <-s.waiter.Ready():
			s.interrupted.Store(true)

		case <-ticker.C:
			batcher.Emit(&streaming.Status{Message: "streaming..."})
			batcher.Emit(tokenUpdate())

		case <-ctx.Done():
			cause := context.Cause(ctx)
			cancel(cause)
			drainEvents(events)
			wrapped := NewSessionErrorWithID("Prompt", s.id, cause)
			batcher.Emit(&streaming.Error{Err: wrapped})
			return wrapped
		}
	}
}

// isCompactionCancel classifies a stream failure. It is a compaction
// cancel only when the hook's own flag is set alongside the structured
// cancellation cause; a backend error that merely resembles the wording
// stays a real error.
func (s *Session) isCompactionCancel(streamCtx context.Context, err error) bool {
	if !s.hook.Triggered() {
		return false
	}
	return errors.Is(err, ErrCompactionRequired) ||
		errors.Is(context.Cause(streamCtx), ErrCompactionRequired)
}

// flushPartialTurn commits text streamed before an interruption as an
// assistant message, so the partial output the user already saw survives
// in history.
func (s *Session) flushPartialTurn(text string) {
	if text == "" {
		return
	}
	s.messages = append(s.messages, NewAssistantMessage([]ContentBlock{NewTextBlock(text)}))
}

// popUnansweredInput removes the trailing user message before a
// compaction retry; the retried stream re-appends it.
func (s *Session) popUnansweredInput(input string) {
	n := len(s.messages)
	if n == 0 {
		return
	}
	last := &s.messages[n-1]
	if last.Role == RoleUser && last.Text() == input {
		s.messages = s.messages[:n-1]
	}
}

// drainEvents consumes the event channel to completion so the adapter
// goroutine can deliver its terminal event and exit.
func drainEvents(events <-chan backend.Event) {
	for range events {
	}
}

func truncatePreview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
