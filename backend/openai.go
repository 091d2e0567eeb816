package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/sengac/codelet/tool"
	"github.com/sengac/codelet/types"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAI streams responses from the OpenAI chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI backend. The API key is read from the
// environment by the SDK. An empty model selects DefaultOpenAIModel.
func NewOpenAI(model string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client: openai.NewClient(),
		model:  model,
	}
}

// NewOpenAIWithClient creates an OpenAI backend with a preconfigured client.
func NewOpenAIWithClient(client openai.Client, model string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{client: client, model: model}
}

func (o *OpenAI) Name() string {
	return "openai"
}

// Model returns the configured model ID.
func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) ContextWindow() int {
	return GetModelInfo(o.model).ContextWindow
}

// Stream runs the prompt through the multi-call tool loop, delivering
// progress on the returned channel. The channel is closed after a Final
// or Failure event.
func (o *OpenAI) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	executor, err := newRunExecutor(req.Tools)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 32)
	go o.run(ctx, req, executor, events)
	return events, nil
}

// toolCallAccumulator collects the pieces of a streamed tool call.
type toolCallAccumulator struct {
	id        string
	name      string
	arguments strings.Builder
}

func (o *OpenAI) run(ctx context.Context, req Request, executor *tool.Executor, events chan<- Event) {
	defer close(events)

	working := append([]types.Message(nil), req.Messages...)
	var total types.Usage

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = int64(GetModelInfo(o.model).DefaultMaxTokens)
	}

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		if req.Hook != nil {
			estimated := estimateRequestTokens(req.System, working)
			if err := req.Hook.OnCallStart(estimated, types.Usage{}); err != nil {
				emitTerminal(events, &Failure{Err: err})
				return
			}
		}

		params := openai.ChatCompletionNewParams{
			Model:               shared.ChatModel(o.model),
			MaxCompletionTokens: openai.Int(maxTokens),
			Messages:            toOpenAIMessages(req.System, working),
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}
		if len(req.Tools) > 0 {
			params.Tools = toOpenAITools(req.Tools)
		}

		stream := o.client.Chat.Completions.NewStreaming(ctx, params)

		var (
			content      strings.Builder
			calls        = make(map[int]*toolCallAccumulator)
			callUsage    types.Usage
			finishReason string
		)

		for stream.Next() {
			chunk := stream.Current()

			// The final chunk carries authoritative usage
			if chunk.Usage.TotalTokens > 0 {
				callUsage = convertOpenAIUsage(chunk.Usage)
				if req.Hook != nil {
					if err := req.Hook.OnCallStart(0, callUsage); err != nil {
						stream.Close()
						emitTerminal(events, &Failure{Err: err})
						return
					}
				}
				emit(ctx, events, &CallStarted{Usage: callUsage})
			}

			for _, choice := range chunk.Choices {
				if choice.FinishReason != "" {
					finishReason = string(choice.FinishReason)
				}

				delta := choice.Delta
				if delta.Content != "" {
					content.WriteString(delta.Content)
					emit(ctx, events, &TextDelta{Text: delta.Content})

					// No mid-stream usage from this API, estimate instead
					outputSoFar := int64(types.EstimateTokens(content.String()))
					if req.Hook != nil {
						req.Hook.OnOutputDelta(outputSoFar)
					}
					emit(ctx, events, &OutputDelta{OutputTokens: outputSoFar})
				}

				for _, tc := range delta.ToolCalls {
					idx := int(tc.Index)
					acc, ok := calls[idx]
					if !ok {
						acc = &toolCallAccumulator{}
						calls[idx] = acc
					}
					if tc.ID != "" {
						acc.id = tc.ID
					}
					if tc.Function.Name != "" {
						acc.name = tc.Function.Name
					}
					acc.arguments.WriteString(tc.Function.Arguments)
				}
			}
		}

		if err := streamError(ctx, stream.Err()); err != nil {
			emitTerminal(events, &Failure{Err: err})
			return
		}

		assistantMsg := buildOpenAIAssistantResult(content.String(), calls)
		total = total.Add(callUsage)
		working = append(working, assistantMsg)

		if finishReason == "tool_calls" && assistantMsg.HasToolUse() {
			resultMsg, ok := runToolCalls(ctx, executor, assistantMsg, events)
			if !ok {
				return
			}
			working = append(working, resultMsg)
			continue
		}

		emitTerminal(events, &Final{
			Message:    assistantMsg,
			Usage:      total,
			StopReason: finishReason,
		})
		return
	}

	emitTerminal(events, &Failure{
		Err: fmt.Errorf("max tool iterations (%d) reached", maxToolIterations),
	})
}

// buildOpenAIAssistantResult assembles the accumulated deltas into an
// assistant message, tool calls ordered by stream index.
func buildOpenAIAssistantResult(text string, calls map[int]*toolCallAccumulator) types.Message {
	var content []types.ContentBlock
	if text != "" {
		content = append(content, types.ContentBlock{
			Type: types.ContentTypeText,
			Text: text,
		})
	}

	indices := make([]int, 0, len(calls))
	for idx := range calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		acc := calls[idx]
		if acc.id == "" || acc.name == "" {
			continue
		}
		args := acc.arguments.String()
		if args == "" {
			args = "{}"
		}
		content = append(content, types.ContentBlock{
			Type:      types.ContentTypeToolUse,
			ToolUseID: acc.id,
			ToolName:  acc.name,
			ToolInput: json.RawMessage(args),
		})
	}

	return types.Message{
		ID:        uuid.New().String(),
		Role:      types.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// toOpenAIMessages converts conversation history to API parameters. Tool
// results become dedicated tool messages keyed by their call ID.
func toOpenAIMessages(system string, messages []types.Message) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(system) != "" {
		result = append(result, openai.SystemMessage(system))
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleAssistant:
			result = append(result, buildOpenAIAssistantParam(msg))
		default:
			var userText strings.Builder
			for _, block := range msg.Content {
				switch block.Type {
				case types.ContentTypeToolResult:
					result = append(result, openai.ToolMessage(block.ToolContent, block.ToolResultID))
				case types.ContentTypeText:
					userText.WriteString(block.Text)
				}
			}
			if userText.Len() > 0 {
				result = append(result, openai.UserMessage(userText.String()))
			}
		}
	}
	return result
}

func buildOpenAIAssistantParam(msg types.Message) openai.ChatCompletionMessageParamUnion {
	assistantParam := openai.ChatCompletionAssistantMessageParam{}

	if text := msg.Text(); text != "" {
		assistantParam.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text),
		}
	}

	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, block := range msg.Content {
		if block.Type != types.ContentTypeToolUse {
			continue
		}
		args := string(block.ToolInput)
		if args == "" {
			args = "{}"
		}
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: block.ToolUseID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      block.ToolName,
				Arguments: args,
			},
		})
	}
	if len(toolCalls) > 0 {
		assistantParam.ToolCalls = toolCalls
	}

	return openai.ChatCompletionMessageParamUnion{
		OfAssistant: &assistantParam,
	}
}

// toOpenAITools converts tool definitions to API parameters.
func toOpenAITools(tools []tool.Tool) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		param := openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:       t.Name(),
				Parameters: shared.FunctionParameters(t.InputSchema().AsMap()),
			},
		}
		if desc := t.Description(); desc != "" {
			param.Function.Description = openai.Opt(desc)
		}
		result = append(result, param)
	}
	return result
}

func convertOpenAIUsage(usage openai.CompletionUsage) types.Usage {
	return types.Usage{
		InputTokens:     usage.PromptTokens,
		OutputTokens:    usage.CompletionTokens,
		CacheReadTokens: usage.PromptTokensDetails.CachedTokens,
	}
}

// IsRetryableOpenAIError reports whether an API error should be retried.
func IsRetryableOpenAIError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
}
