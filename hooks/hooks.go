// Package hooks provides lifecycle callbacks for session events.
package hooks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sengac/codelet/compaction"
	"github.com/sengac/codelet/types"
)

// BeforePromptHook is called before a prompt run starts.
type BeforePromptHook func(ctx context.Context, sessionID string, input string) error

// AfterResponseHook is called after a prompt run produced a response.
type AfterResponseHook func(ctx context.Context, sessionID string, response types.Message, usage types.Usage) error

// ToolCallHook is called when a tool is executed.
// Parameters: ctx, toolName, input, output, isError.
type ToolCallHook func(ctx context.Context, toolName string, input json.RawMessage, output string, isError bool) error

// BeforeCompactionHook is called before conversation compaction.
type BeforeCompactionHook func(ctx context.Context, sessionID string) error

// AfterCompactionHook is called after conversation compaction succeeded.
type AfterCompactionHook func(ctx context.Context, sessionID string, result *compaction.Result) error

// Registry holds all registered hooks. Safe for concurrent use.
type Registry struct {
	mu               sync.RWMutex
	beforePrompt     []BeforePromptHook
	afterResponse    []AfterResponseHook
	toolCall         []ToolCallHook
	beforeCompaction []BeforeCompactionHook
	afterCompaction  []AfterCompactionHook
}

// NewRegistry creates a new hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// OnBeforePrompt registers a hook to be called before a prompt run.
func (r *Registry) OnBeforePrompt(hook BeforePromptHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforePrompt = append(r.beforePrompt, hook)
}

// OnAfterResponse registers a hook to be called after a response.
func (r *Registry) OnAfterResponse(hook AfterResponseHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterResponse = append(r.afterResponse, hook)
}

// OnToolCall registers a hook to be called when a tool is executed.
func (r *Registry) OnToolCall(hook ToolCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCall = append(r.toolCall, hook)
}

// OnBeforeCompaction registers a hook to be called before compaction.
func (r *Registry) OnBeforeCompaction(hook BeforeCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompaction = append(r.beforeCompaction, hook)
}

// OnAfterCompaction registers a hook to be called after compaction.
func (r *Registry) OnAfterCompaction(hook AfterCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompaction = append(r.afterCompaction, hook)
}

// TriggerBeforePrompt calls all registered before-prompt hooks.
func (r *Registry) TriggerBeforePrompt(ctx context.Context, sessionID string, input string) error {
	r.mu.RLock()
	hooks := make([]BeforePromptHook, len(r.beforePrompt))
	copy(hooks, r.beforePrompt)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, sessionID, input); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterResponse calls all registered after-response hooks.
func (r *Registry) TriggerAfterResponse(ctx context.Context, sessionID string, response types.Message, usage types.Usage) error {
	r.mu.RLock()
	hooks := make([]AfterResponseHook, len(r.afterResponse))
	copy(hooks, r.afterResponse)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, sessionID, response, usage); err != nil {
			return err
		}
	}
	return nil
}

// TriggerToolCall calls all registered tool-call hooks.
func (r *Registry) TriggerToolCall(ctx context.Context, toolName string, input json.RawMessage, output string, isError bool) error {
	r.mu.RLock()
	hooks := make([]ToolCallHook, len(r.toolCall))
	copy(hooks, r.toolCall)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, toolName, input, output, isError); err != nil {
			return err
		}
	}
	return nil
}

// TriggerBeforeCompaction calls all registered before-compaction hooks.
func (r *Registry) TriggerBeforeCompaction(ctx context.Context, sessionID string) error {
	r.mu.RLock()
	hooks := make([]BeforeCompactionHook, len(r.beforeCompaction))
	copy(hooks, r.beforeCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, sessionID); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompaction calls all registered after-compaction hooks.
func (r *Registry) TriggerAfterCompaction(ctx context.Context, sessionID string, result *compaction.Result) error {
	r.mu.RLock()
	hooks := make([]AfterCompactionHook, len(r.afterCompaction))
	copy(hooks, r.afterCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, sessionID, result); err != nil {
			return err
		}
	}
	return nil
}
