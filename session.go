package codelet

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sengac/codelet/backend"
	"github.com/sengac/codelet/compaction"
	"github.com/sengac/codelet/hooks"
)

// State describes what a session is currently doing.
type State string

const (
	// StateIdle means no stream or compaction is running.
	StateIdle State = "idle"

	// StateStreaming means a Prompt call is in flight.
	StateStreaming State = "streaming"

	// StateCompacting means the conversation is being compacted.
	StateCompacting State = "compacting"
)

// ContinuationNotice is appended to the history after a compaction so the
// model knows the preceding summary replaces earlier turns.
const ContinuationNotice = "This session is being continued from a previous conversation that ran out of context."

// Session is a single conversation with one active backend. All mutating
// operations serialize on an internal lock held for their full duration,
// so a Prompt, Compact and SwitchBackend can never interleave against the
// same history. Interrupt and QueueInput are safe to call from any
// goroutine while a stream runs.
type Session struct {
	id     string
	cfg    *internalConfig
	logger Logger

	manager   *backend.Manager
	hooks     *hooks.Registry
	compactor *compaction.Compactor
	waiter    Waiter

	// tracker is guarded by hook's mutex; all access goes through hook.
	tracker TokenTracker
	hook    *CompactionHook

	mu       sync.Mutex // serializes Prompt, Compact, restore, clear
	messages []Message

	stateMu sync.Mutex
	state   State

	interrupted atomic.Bool
	wake        chan struct{}

	queueMu sync.Mutex
	queued  []string
}

// New creates a session. Backends are detected from the environment
// (ANTHROPIC_API_KEY, then OPENAI_API_KEY) unless injected with
// WithBackend; returns ErrNoBackend when neither yields one.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ic := newInternalConfig(cfg)
	for _, opt := range opts {
		if err := opt(ic); err != nil {
			return nil, err
		}
	}

	backends := ic.backends
	if len(backends) == 0 {
		backends = detectBackends(ic.logger, ic.model)
	}
	manager, err := backend.NewManager(backends)
	if err != nil {
		return nil, NewSessionError("New", err)
	}

	compactorCfg := &compaction.Config{
		KeepRecentTurns:     ic.keepRecentTurns,
		MinAnchorConfidence: ic.minAnchorConfidence,
		MinCompressionRatio: compaction.DefaultMinCompressionRatio,
	}
	compactor, err := compaction.NewCompactor(compactorCfg, ic.logger)
	if err != nil {
		return nil, NewSessionError("New", err)
	}

	waiter := ic.waiter
	if waiter == nil {
		waiter = NewHostWaiter()
	}

	s := &Session{
		id:        uuid.New().String(),
		cfg:       ic,
		logger:    ic.logger,
		manager:   manager,
		hooks:     ic.hooks,
		compactor: compactor,
		waiter:    waiter,
		state:     StateIdle,
		wake:      make(chan struct{}, 1),
	}
	s.hook = NewCompactionHook(&s.tracker)

	s.logger.Debug("session created",
		"session_id", s.id,
		"backend", manager.Current().Name(),
		"context_window", manager.Current().ContextWindow())
	return s, nil
}

// detectBackends probes the environment and applies the configured model
// override to the matching provider.
func detectBackends(logger Logger, model string) []backend.Backend {
	backends := backend.Detect(logger)
	if model == "" {
		return backends
	}
	for i, b := range backends {
		switch b.Name() {
		case "claude":
			if strings.HasPrefix(model, "claude") {
				backends[i] = backend.NewClaude(model)
			}
		case "openai":
			if !strings.HasPrefix(model, "claude") {
				backends[i] = backend.NewOpenAI(model)
			}
		}
	}
	return backends
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current session state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// Interrupt requests cancellation of the in-flight stream. Idempotent and
// safe from any goroutine; a no-op when the session is idle. The wake
// signal unblocks the prompt loop even while it is waiting on network
// data.
func (s *Session) Interrupt() {
	s.interrupted.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ResetInterrupt clears a pending interrupt request. Idempotent.
func (s *Session) ResetInterrupt() {
	s.interrupted.Store(false)
}

// QueueInput records input typed while a stream is running. Queued inputs
// ride out on the Interrupted chunk and via DrainQueue.
func (s *Session) QueueInput(input string) {
	if input == "" {
		return
	}
	s.queueMu.Lock()
	s.queued = append(s.queued, input)
	s.queueMu.Unlock()
}

// DrainQueue returns the queued inputs in arrival order and clears the
// queue.
func (s *Session) DrainQueue() []string {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	queued := s.queued
	s.queued = nil
	return queued
}

// CurrentBackend returns the active backend name.
func (s *Session) CurrentBackend() string {
	return s.manager.Current().Name()
}

// AvailableBackends returns the detected backend names in priority order.
func (s *Session) AvailableBackends() []string {
	return s.manager.Available()
}

// ContextWindow returns the active backend's context window in tokens.
func (s *Session) ContextWindow() int {
	return s.manager.Current().ContextWindow()
}

// TokenUsage returns the cumulative session token usage.
func (s *Session) TokenUsage() Usage {
	return s.hook.Snapshot()
}

// SwitchBackend activates a different detected backend. Only valid while
// the session is idle; history and token counters are left untouched so
// the conversation continues on the new backend.
func (s *Session) SwitchBackend(name string) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.state != StateIdle {
		return NewSessionErrorWithID("SwitchBackend", s.id, ErrSessionBusy).
			WithContext("state", string(s.state))
	}
	if err := s.manager.Use(name); err != nil {
		return NewSessionErrorWithID("SwitchBackend", s.id, err)
	}
	s.logger.Info("backend switched",
		"session_id", s.id,
		"backend", name,
		"context_window", s.manager.Current().ContextWindow())
	return nil
}

// Messages returns the flattened conversation history. Non-text content
// renders as "[non-text content]".
func (s *Session) Messages() []MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]MessageView, 0, len(s.messages))
	for i := range s.messages {
		views = append(views, s.messages[i].View())
	}
	return views
}

// RestoreMessages replaces the history with previously persisted views.
// Unsupported roles are dropped silently. Token counters are reset and
// re-estimated from the restored text so the threshold math does not
// drift against a history the server never accounted for.
func (s *Session) RestoreMessages(views []MessageView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var messages []Message
	var inputTokens int64
	for _, v := range views {
		switch Role(v.Role) {
		case RoleUser:
			messages = append(messages, NewUserMessage(v.Content))
		case RoleAssistant:
			messages = append(messages, NewAssistantMessage([]ContentBlock{NewTextBlock(v.Content)}))
		default:
			continue
		}
		inputTokens += EstimateTokens(v.Content)
	}

	s.messages = messages
	s.hook.SetBaseline(inputTokens)
	s.logger.Debug("history restored",
		"session_id", s.id,
		"messages", len(messages),
		"estimated_tokens", inputTokens)
}

// ClearHistory discards the conversation and resets token counters.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.hook.Reset()
	s.logger.Debug("history cleared", "session_id", s.id)
}

// Compact summarizes older turns behind the most recent anchor and
// rebuilds the history as kept turns, summary and continuation notice.
// On any failure the history and token counters are left untouched so a
// later attempt can retry.
func (s *Session) Compact(ctx context.Context) (*compaction.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setState(StateCompacting)
	defer s.setState(StateIdle)
	return s.compactLocked(ctx)
}

// compactLocked runs compaction with s.mu held. Callers manage state.
func (s *Session) compactLocked(ctx context.Context) (*compaction.Result, error) {
	if err := s.hooks.TriggerBeforeCompaction(ctx, s.id); err != nil {
		s.logger.Warn("before-compaction hook failed", "session_id", s.id, "error", err)
	}

	turns := compaction.TurnsFromMessages(s.messages)
	result, err := s.compactor.Compact(turns)
	if err != nil {
		return nil, NewSessionErrorWithID("Compact", s.id, err)
	}

	s.messages = rebuildHistory(result)

	var inputTokens int64
	for i := range s.messages {
		inputTokens += EstimateTokens(s.messages[i].Text())
	}
	s.hook.SetBaseline(inputTokens)

	if err := s.hooks.TriggerAfterCompaction(ctx, s.id, result); err != nil {
		s.logger.Warn("after-compaction hook failed", "session_id", s.id, "error", err)
	}

	s.logger.Info("session compacted",
		"session_id", s.id,
		"turns_summarized", result.Metrics.TurnsSummarized,
		"turns_kept", result.Metrics.TurnsKept,
		"compression_ratio", result.Metrics.CompressionRatio,
		"baseline_tokens", inputTokens)
	return result, nil
}

// rebuildHistory converts a compaction result back into messages: kept
// turns as plain user/assistant pairs (tool traffic dropped), then the
// summary, then the continuation notice.
func rebuildHistory(result *compaction.Result) []Message {
	var messages []Message
	for _, turn := range result.KeptTurns {
		if turn.UserInput != "" {
			messages = append(messages, NewUserMessage(turn.UserInput))
		}
		if turn.Response != "" {
			messages = append(messages, NewAssistantMessage([]ContentBlock{NewTextBlock(turn.Response)}))
		}
	}
	messages = append(messages, NewUserMessage(result.Summary))
	messages = append(messages, NewUserMessage(ContinuationNotice))
	return messages
}
