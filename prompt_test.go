package codelet

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sengac/codelet/backend"
	"github.com/sengac/codelet/streaming"
)

func TestPrompt_StreamsTextAndDone(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{
		replyScript("Hello! The answer is 42."),
	}}
	s := newTestSession(t, b)
	rec := &chunkRecorder{}

	err := s.Prompt(context.Background(), "What is the answer?", rec.sink)
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}

	terminal := assertSingleTerminal(t, rec.chunks)
	done, ok := terminal.(*streaming.Done)
	if !ok {
		t.Fatalf("terminal chunk = %T, want *streaming.Done", terminal)
	}
	if done.Response != "Hello! The answer is 42." {
		t.Errorf("Done.Response = %q", done.Response)
	}

	var text strings.Builder
	for _, c := range rec.chunks {
		if tc, ok := c.(*streaming.Text); ok {
			text.WriteString(tc.Content)
		}
	}
	if text.String() != "Hello! The answer is 42." {
		t.Errorf("streamed text = %q", text.String())
	}

	views := s.Messages()
	if len(views) != 2 {
		t.Fatalf("history length = %d, want 2", len(views))
	}
	if views[0].Role != "user" || views[1].Role != "assistant" {
		t.Errorf("history roles = %q, %q", views[0].Role, views[1].Role)
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("state after Prompt = %q, want idle", got)
	}
}

func TestPrompt_EmptyInput(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("x")}}
	s := newTestSession(t, b)
	rec := &chunkRecorder{}

	err := s.Prompt(context.Background(), "   \n", rec.sink)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Prompt with blank input = %v, want ErrEmptyInput", err)
	}

	terminal := assertSingleTerminal(t, rec.chunks)
	if _, ok := terminal.(*streaming.Error); !ok {
		t.Errorf("terminal chunk = %T, want *streaming.Error", terminal)
	}
	if b.calls != 0 {
		t.Errorf("backend was called %d times for empty input", b.calls)
	}
}

func TestPrompt_TokenUpdates(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{
		replyScript("Short reply."),
	}}
	s := newTestSession(t, b)
	rec := &chunkRecorder{}

	if err := s.Prompt(context.Background(), "hi", rec.sink); err != nil {
		t.Fatalf("Prompt: %v", err)
	}

	var updates []*streaming.TokenUpdate
	for _, c := range rec.chunks {
		if u, ok := c.(*streaming.TokenUpdate); ok {
			updates = append(updates, u)
		}
	}
	if len(updates) == 0 {
		t.Fatal("no TokenUpdate chunks emitted")
	}
	// Cumulative totals never regress within a call.
	var prev int64
	for i, u := range updates {
		total := u.Usage.Total()
		if total < prev {
			t.Errorf("token update %d regressed: %d < %d", i, total, prev)
		}
		prev = total
	}
	last := updates[len(updates)-1]
	if last.ContextWindow != 200_000 {
		t.Errorf("ContextWindow = %d, want 200000", last.ContextWindow)
	}
	if last.Threshold != 180_000 {
		t.Errorf("Threshold = %d, want 180000", last.Threshold)
	}
}

func TestPrompt_ToolEvents(t *testing.T) {
	longOutput := strings.Repeat("x", 600)
	script := func(ctx context.Context, req backend.Request, events chan<- backend.Event) {
		req.Hook.OnCallStart(10, Usage{})
		events <- &backend.TextDelta{Text: "Running the command."}
		events <- &backend.ToolCallEvent{ID: "tc_1", Name: "bash", Input: []byte(`{"command":"ls"}`)}
		events <- &backend.ToolResultEvent{ID: "tc_1", Name: "bash", Output: longOutput, IsError: false}
		events <- &backend.Final{
			Message:    NewAssistantMessage([]ContentBlock{NewTextBlock("Done.")}),
			Usage:      Usage{InputTokens: 50, OutputTokens: 10},
			StopReason: "end_turn",
		}
	}
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{script}}
	s := newTestSession(t, b)
	rec := &chunkRecorder{}

	if err := s.Prompt(context.Background(), "list files", rec.sink); err != nil {
		t.Fatalf("Prompt: %v", err)
	}

	var callIdx, resultIdx = -1, -1
	for i, c := range rec.chunks {
		switch chunk := c.(type) {
		case *streaming.ToolCall:
			callIdx = i
			if chunk.Name != "bash" || chunk.ID != "tc_1" {
				t.Errorf("ToolCall = %+v", chunk)
			}
		case *streaming.ToolResult:
			resultIdx = i
			if len(chunk.Output) != 503 || !strings.HasSuffix(chunk.Output, "...") {
				t.Errorf("tool output preview not truncated to 500+ellipsis: len=%d", len(chunk.Output))
			}
		}
	}
	if callIdx == -1 || resultIdx == -1 {
		t.Fatal("missing ToolCall or ToolResult chunk")
	}
	if callIdx > resultIdx {
		t.Error("ToolCall emitted after its ToolResult")
	}
}

func TestPrompt_Interrupt(t *testing.T) {
	blocked := func(ctx context.Context, req backend.Request, events chan<- backend.Event) {
		events <- &backend.TextDelta{Text: "Partial answer before the cut"}
		events <- &backend.OutputDelta{OutputTokens: 5}
		<-ctx.Done()
		events <- &backend.Failure{Err: context.Cause(ctx)}
	}
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{blocked}}
	s := newTestSession(t, b)

	// The OutputDelta chunk proves the TextDelta before it was consumed;
	// interrupt only after that point so the partial text is in history.
	sawTokens := make(chan struct{})
	rec := &chunkRecorder{}
	sink := func(c streaming.Chunk) {
		rec.sink(c)
		if _, ok := c.(*streaming.TokenUpdate); ok {
			select {
			case <-sawTokens:
			default:
				close(sawTokens)
			}
		}
	}

	go func() {
		<-sawTokens
		s.QueueInput("queued follow-up")
		s.Interrupt()
	}()

	if err := s.Prompt(context.Background(), "long question", sink); err != nil {
		t.Fatalf("Prompt: %v", err)
	}

	terminal := assertSingleTerminal(t, rec.chunks)
	interrupted, ok := terminal.(*streaming.Interrupted)
	if !ok {
		t.Fatalf("terminal chunk = %T, want *streaming.Interrupted", terminal)
	}
	if len(interrupted.QueuedInputs) != 1 || interrupted.QueuedInputs[0] != "queued follow-up" {
		t.Errorf("QueuedInputs = %v", interrupted.QueuedInputs)
	}

	views := s.Messages()
	if len(views) != 2 {
		t.Fatalf("history length = %d, want user + partial assistant", len(views))
	}
	if views[1].Role != "assistant" || views[1].Content != "Partial answer before the cut" {
		t.Errorf("partial turn = %+v", views[1])
	}
}

func TestPrompt_CompactsAndRetriesOnce(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{
		breachScript(),
		replyScript("Recovered after compaction."),
	}}
	s := newTestSession(t, b)
	s.RestoreMessages(conversationViews(6))
	rec := &chunkRecorder{}

	err := s.Prompt(context.Background(), "continue the work", rec.sink)
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if b.calls != 2 {
		t.Errorf("backend called %d times, want 2 (original + one retry)", b.calls)
	}

	terminal := assertSingleTerminal(t, rec.chunks)
	done, ok := terminal.(*streaming.Done)
	if !ok {
		t.Fatalf("terminal chunk = %T, want *streaming.Done", terminal)
	}
	if done.Response != "Recovered after compaction." {
		t.Errorf("Done.Response = %q", done.Response)
	}

	var sawStatus bool
	for _, c := range rec.chunks {
		if _, ok := c.(*streaming.Status); ok {
			sawStatus = true
		}
	}
	if !sawStatus {
		t.Error("no Status chunk announced the compaction")
	}

	views := s.Messages()
	var sawNotice bool
	for _, v := range views {
		if v.Content == ContinuationNotice {
			sawNotice = true
		}
	}
	if !sawNotice {
		t.Error("compacted history is missing the continuation notice")
	}
	last := views[len(views)-1]
	if last.Role != "assistant" || last.Content != "Recovered after compaction." {
		t.Errorf("last message = %+v", last)
	}
}

func TestPrompt_SecondBreachIsError(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{
		breachScript(),
		breachScript(),
	}}
	s := newTestSession(t, b)
	s.RestoreMessages(conversationViews(6))
	rec := &chunkRecorder{}

	err := s.Prompt(context.Background(), "continue the work", rec.sink)
	if !errors.Is(err, ErrCompactionRequired) {
		t.Fatalf("Prompt after second breach = %v, want ErrCompactionRequired", err)
	}
	if b.calls != 2 {
		t.Errorf("backend called %d times, want 2", b.calls)
	}

	terminal := assertSingleTerminal(t, rec.chunks)
	if _, ok := terminal.(*streaming.Error); !ok {
		t.Errorf("terminal chunk = %T, want *streaming.Error", terminal)
	}
}

func TestPrompt_BackendErrorSurfaces(t *testing.T) {
	transportErr := errors.New("connection reset by peer")
	failing := func(ctx context.Context, req backend.Request, events chan<- backend.Event) {
		req.Hook.OnCallStart(10, Usage{})
		events <- &backend.Failure{Err: transportErr}
	}
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{failing}}
	s := newTestSession(t, b)
	rec := &chunkRecorder{}

	err := s.Prompt(context.Background(), "hello", rec.sink)
	if !errors.Is(err, transportErr) {
		t.Fatalf("Prompt = %v, want wrapped transport error", err)
	}

	terminal := assertSingleTerminal(t, rec.chunks)
	errChunk, ok := terminal.(*streaming.Error)
	if !ok {
		t.Fatalf("terminal chunk = %T, want *streaming.Error", terminal)
	}
	if !errors.Is(errChunk.Err, transportErr) {
		t.Errorf("Error chunk carries %v", errChunk.Err)
	}
}

func TestPrompt_BeforeHookAborts(t *testing.T) {
	b := &fakeBackend{name: "alpha", window: 200_000, scripts: []streamScript{replyScript("x")}}
	hookErr := errors.New("blocked by policy")
	s := newTestSession(t, b)
	s.hooks.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		return hookErr
	})
	rec := &chunkRecorder{}

	err := s.Prompt(context.Background(), "hello", rec.sink)
	if !errors.Is(err, hookErr) {
		t.Fatalf("Prompt = %v, want hook error", err)
	}
	if b.calls != 0 {
		t.Errorf("backend was called despite hook abort")
	}
	terminal := assertSingleTerminal(t, rec.chunks)
	if _, ok := terminal.(*streaming.Error); !ok {
		t.Errorf("terminal chunk = %T, want *streaming.Error", terminal)
	}
}
