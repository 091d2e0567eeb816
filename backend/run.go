package backend

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sengac/codelet/tool"
	"github.com/sengac/codelet/types"
)

// emit sends an event unless the context is cancelled. The cancellation
// itself is surfaced by the adapter's stream error handling.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitTerminal sends the terminal event unconditionally. The session
// drains the channel until close, so this cannot block forever.
func emitTerminal(events chan<- Event, ev Event) {
	events <- ev
}

// streamError normalizes a stream failure. Context cancellation wins over
// whatever error the transport reported, and the cancellation cause is
// preserved so the session can distinguish interrupts from compaction.
func streamError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return ctx.Err()
	}
	return err
}

// newRunExecutor builds a tool executor over the request's tool set.
func newRunExecutor(tools []tool.Tool) (*tool.Executor, error) {
	registry := tool.NewRegistry()
	if err := registry.RegisterAll(tools); err != nil {
		return nil, err
	}
	return tool.NewExecutor(registry), nil
}

// runToolCalls executes every tool call in the assistant message in
// order, emitting call and result events, and returns the tool-result
// message to append to the working history. Returns ok=false when the
// context was cancelled mid-execution and the run should stop.
func runToolCalls(ctx context.Context, executor *tool.Executor, msg types.Message, events chan<- Event) (types.Message, bool) {
	var resultBlocks []types.ContentBlock

	for _, block := range msg.Content {
		if block.Type != types.ContentTypeToolUse {
			continue
		}

		if !emit(ctx, events, &ToolCallEvent{
			ID:    block.ToolUseID,
			Name:  block.ToolName,
			Input: block.ToolInput,
		}) {
			emitTerminal(events, &Failure{Err: streamError(ctx, ctx.Err())})
			return types.Message{}, false
		}

		result := executor.Execute(ctx, tool.Request{
			ID:    block.ToolUseID,
			Name:  block.ToolName,
			Input: block.ToolInput,
		})
		if ctx.Err() != nil {
			emitTerminal(events, &Failure{Err: streamError(ctx, ctx.Err())})
			return types.Message{}, false
		}

		output := result.Output
		isError := result.Err != nil
		if isError {
			output = result.Err.Error()
		}

		if !emit(ctx, events, &ToolResultEvent{
			ID:      block.ToolUseID,
			Name:    block.ToolName,
			Output:  output,
			IsError: isError,
		}) {
			emitTerminal(events, &Failure{Err: streamError(ctx, ctx.Err())})
			return types.Message{}, false
		}

		resultBlocks = append(resultBlocks, types.ContentBlock{
			Type:         types.ContentTypeToolResult,
			ToolResultID: block.ToolUseID,
			ToolName:     block.ToolName,
			ToolContent:  output,
			IsError:      isError,
		})
	}

	return types.Message{
		ID:        uuid.New().String(),
		Role:      types.RoleUser,
		Content:   resultBlocks,
		CreatedAt: time.Now(),
	}, true
}

// estimateRequestTokens approximates the input size of the next API call.
func estimateRequestTokens(system string, messages []types.Message) int {
	total := types.EstimateTokens(system)
	for _, msg := range messages {
		total += types.EstimateMessageTokens(msg)
	}
	return total
}
