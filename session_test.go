package codelet

import (
	"context"
	"errors"
	"testing"

	"github.com/sengac/codelet/backend"
	"github.com/sengac/codelet/compaction"
	"github.com/sengac/codelet/streaming"
)

// streamScript drives one fake backend stream. The channel is closed by
// the fake after the script returns.
type streamScript func(ctx context.Context, req backend.Request, events chan<- backend.Event)

type fakeBackend struct {
	name    string
	window  int
	scripts []streamScript
	calls   int
}

func (f *fakeBackend) Name() string       { return f.name }
func (f *fakeBackend) ContextWindow() int { return f.window }

func (f *fakeBackend) Stream(ctx context.Context, req backend.Request) (<-chan backend.Event, error) {
	idx := f.calls
	if idx >= len(f.scripts) {
		idx = len(f.scripts) - 1
	}
	f.calls++
	script := f.scripts[idx]

	events := make(chan backend.Event, 32)
	go func() {
		defer close(events)
		script(ctx, req, events)
	}()
	return events, nil
}

// replyScript streams text and finishes successfully.
func replyScript(text string) streamScript {
	return func(ctx context.Context, req backend.Request, events chan<- backend.Event) {
		if req.Hook != nil {
			if err := req.Hook.OnCallStart(10, Usage{}); err != nil {
				events <- &backend.Failure{Err: err}
				return
			}
			req.Hook.OnCallStart(0, Usage{InputTokens: 100})
		}
		events <- &backend.CallStarted{Usage: Usage{InputTokens: 100}}
		events <- &backend.TextDelta{Text: text}
		if req.Hook != nil {
			req.Hook.OnOutputDelta(EstimateTokens(text))
		}
		events <- &backend.Final{
			Message:    NewAssistantMessage([]ContentBlock{NewTextBlock(text)}),
			Usage:      Usage{InputTokens: 100, OutputTokens: 5},
			StopReason: "end_turn",
		}
	}
}

// breachScript reports an input estimate large enough to trip the
// compaction hook, then surfaces the resulting abort like a real adapter.
func breachScript() streamScript {
	return func(ctx context.Context, req backend.Request, events chan<- backend.Event) {
		if err := req.Hook.OnCallStart(10_000_000, Usage{}); err != nil {
			events <- &backend.Failure{Err: err}
			return
		}
		events <- &backend.Failure{Err: errors.New("breach script expected hook abort")}
	}
}

func newTestSession(t *testing.T, b backend.Backend, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithBackend(b)}, opts...)
	s, err := New(Config{SystemPrompt: "test assistant"}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// chunkRecorder collects chunks. Only the Prompt goroutine writes to it.
type chunkRecorder struct {
	chunks []streaming.Chunk
}

func (r *chunkRecorder) sink(c streaming.Chunk) {
	r.chunks = append(r.chunks, c)
}

// assertSingleTerminal verifies the one-terminal-chunk contract and
// returns the terminal.
func assertSingleTerminal(t *testing.T, chunks []streaming.Chunk) streaming.Chunk {
	t.Helper()
	var terminal streaming.Chunk
	count := 0
	for i, c := range chunks {
		if streaming.Terminal(c) {
			count++
			terminal = c
			if i != len(chunks)-1 {
				t.Errorf("terminal chunk at index %d is not last of %d", i, len(chunks))
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one terminal chunk, got %d", count)
	}
	return terminal
}

func TestNew_NoBackend(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := New(Config{SystemPrompt: "test"})
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("New without credentials = %v, want ErrNoBackend", err)
	}
}

func TestNew_RequiresSystemPrompt(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New without system prompt = %v, want ErrInvalidConfig", err)
	}
}

func TestSwitchBackend(t *testing.T) {
	alpha := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("a")}}
	beta := &fakeBackend{name: "beta", window: 128_000, scripts: []streamScript{replyScript("b")}}
	s := newTestSession(t, alpha, WithBackend(beta))

	if got := s.CurrentBackend(); got != "alpha" {
		t.Fatalf("CurrentBackend = %q, want alpha", got)
	}

	if err := s.SwitchBackend("beta"); err != nil {
		t.Fatalf("SwitchBackend: %v", err)
	}
	if got := s.CurrentBackend(); got != "beta" {
		t.Errorf("CurrentBackend after switch = %q, want beta", got)
	}
	if got := s.ContextWindow(); got != 128_000 {
		t.Errorf("ContextWindow after switch = %d, want 128000", got)
	}

	if err := s.SwitchBackend("gamma"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("SwitchBackend(gamma) = %v, want ErrUnknownBackend", err)
	}
}

func TestSwitchBackend_BusyWhileStreaming(t *testing.T) {
	alpha := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("a")}}
	beta := &fakeBackend{name: "beta", window: 200_000, scripts: []streamScript{replyScript("b")}}
	s := newTestSession(t, alpha, WithBackend(beta))

	s.setState(StateStreaming)
	defer s.setState(StateIdle)

	if err := s.SwitchBackend("beta"); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("SwitchBackend while streaming = %v, want ErrSessionBusy", err)
	}
	if got := s.CurrentBackend(); got != "alpha" {
		t.Errorf("busy switch changed the backend to %q", got)
	}
}

func TestSwitchBackend_KeepsHistory(t *testing.T) {
	alpha := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("a")}}
	beta := &fakeBackend{name: "beta", window: 200_000, scripts: []streamScript{replyScript("b")}}
	s := newTestSession(t, alpha, WithBackend(beta))

	s.RestoreMessages([]MessageView{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	})
	before := s.TokenUsage()

	if err := s.SwitchBackend("beta"); err != nil {
		t.Fatalf("SwitchBackend: %v", err)
	}
	if got := len(s.Messages()); got != 2 {
		t.Errorf("history length after switch = %d, want 2", got)
	}
	if s.TokenUsage() != before {
		t.Errorf("token usage changed across switch: %+v != %+v", s.TokenUsage(), before)
	}
}

func TestRestoreMessages(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("x")}}
	s := newTestSession(t, b)

	s.RestoreMessages([]MessageView{
		{Role: "user", Content: "hello world"},
		{Role: "system", Content: "dropped silently"},
		{Role: "assistant", Content: "hi there"},
	})

	views := s.Messages()
	if len(views) != 2 {
		t.Fatalf("restored %d messages, want 2", len(views))
	}
	if views[0].Role != "user" || views[0].Content != "hello world" {
		t.Errorf("views[0] = %+v", views[0])
	}
	if views[1].Role != "assistant" || views[1].Content != "hi there" {
		t.Errorf("views[1] = %+v", views[1])
	}

	// "hello world" is 11 bytes (3 tokens), "hi there" is 8 (2 tokens).
	if got := s.TokenUsage().InputTokens; got != 5 {
		t.Errorf("restored baseline = %d tokens, want 5", got)
	}
	if got := s.TokenUsage().OutputTokens; got != 0 {
		t.Errorf("restore should zero output tokens, got %d", got)
	}
}

func TestClearHistory(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("x")}}
	s := newTestSession(t, b)

	s.RestoreMessages([]MessageView{{Role: "user", Content: "hello"}})
	s.ClearHistory()

	if got := len(s.Messages()); got != 0 {
		t.Errorf("history length after clear = %d, want 0", got)
	}
	if got := s.TokenUsage().Total(); got != 0 {
		t.Errorf("token usage after clear = %d, want 0", got)
	}
}

func TestCompact_EmptyHistory(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("x")}}
	s := newTestSession(t, b)

	_, err := s.Compact(context.Background())
	if !errors.Is(err, compaction.ErrNothingToCompact) {
		t.Errorf("Compact on empty history = %v, want ErrNothingToCompact", err)
	}
}

func TestCompact_RebuildsHistory(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("x")}}
	s := newTestSession(t, b)

	s.RestoreMessages(conversationViews(6))

	result, err := s.Compact(context.Background())
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if result.Metrics.TurnsSummarized == 0 {
		t.Error("expected at least one summarized turn")
	}

	views := s.Messages()
	if len(views) < 2 {
		t.Fatalf("rebuilt history too short: %d messages", len(views))
	}
	last := views[len(views)-1]
	if last.Role != "user" || last.Content != ContinuationNotice {
		t.Errorf("last message = %+v, want continuation notice", last)
	}
	summary := views[len(views)-2]
	if summary.Role != "user" {
		t.Errorf("summary message role = %q, want user", summary.Role)
	}
}

func TestCompact_FailureLeavesStateUntouched(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("x")}}
	s := newTestSession(t, b)

	s.RestoreMessages([]MessageView{
		{Role: "user", Content: "only one short exchange"},
		{Role: "assistant", Content: "nothing worth compacting"},
	})
	before := s.TokenUsage()

	if _, err := s.Compact(context.Background()); err == nil {
		t.Fatal("expected compaction of a two-message history to fail")
	}
	if got := len(s.Messages()); got != 2 {
		t.Errorf("failed compaction changed history length to %d", got)
	}
	if s.TokenUsage() != before {
		t.Errorf("failed compaction changed token usage: %+v != %+v", s.TokenUsage(), before)
	}
}

// conversationViews builds n alternating user/assistant turns of
// realistic length for compaction tests.
func conversationViews(n int) []MessageView {
	var views []MessageView
	for i := 0; i < n; i++ {
		views = append(views,
			MessageView{Role: "user", Content: "Please explain how the scheduler picks the next goroutine to run."},
			MessageView{Role: "assistant", Content: "The scheduler keeps per-P run queues and steals work when a queue drains. Each P owns a local queue checked first."},
		)
	}
	return views
}
