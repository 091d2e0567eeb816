package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/google/uuid"

	"github.com/sengac/codelet/tool"
	"github.com/sengac/codelet/types"
)

// DefaultClaudeModel is used when no model is configured.
const DefaultClaudeModel = "claude-sonnet-4-5-20250929"

// maxToolIterations bounds the tool-use loop within a single run.
const maxToolIterations = 10

// Claude streams responses from the Anthropic Messages API.
type Claude struct {
	client anthropic.Client
	model  string
}

// NewClaude creates a Claude backend. The API key is read from the
// environment by the SDK. An empty model selects DefaultClaudeModel.
func NewClaude(model string) *Claude {
	if model == "" {
		model = DefaultClaudeModel
	}
	return &Claude{
		client: anthropic.NewClient(),
		model:  model,
	}
}

// NewClaudeWithClient creates a Claude backend with a preconfigured client.
func NewClaudeWithClient(client anthropic.Client, model string) *Claude {
	if model == "" {
		model = DefaultClaudeModel
	}
	return &Claude{client: client, model: model}
}

func (c *Claude) Name() string {
	return "claude"
}

// Model returns the configured model ID.
func (c *Claude) Model() string {
	return c.model
}

func (c *Claude) ContextWindow() int {
	return GetModelInfo(c.model).ContextWindow
}

// Stream runs the prompt through the multi-call tool loop, delivering
// progress on the returned channel. The channel is closed after a Final
// or Failure event.
func (c *Claude) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	executor, err := newRunExecutor(req.Tools)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 32)
	go c.run(ctx, req, executor, events)
	return events, nil
}

func (c *Claude) run(ctx context.Context, req Request, executor *tool.Executor, events chan<- Event) {
	defer close(events)

	working := append([]types.Message(nil), req.Messages...)
	var total types.Usage

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = int64(GetModelInfo(c.model).DefaultMaxTokens)
	}

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		if req.Hook != nil {
			estimated := estimateRequestTokens(req.System, working)
			if err := req.Hook.OnCallStart(estimated, types.Usage{}); err != nil {
				emitTerminal(events, &Failure{Err: err})
				return
			}
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: maxTokens,
			Messages:  toAnthropicMessages(working),
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
		}
		if len(req.Tools) > 0 {
			params.Tools = toAnthropicTools(req.Tools)
		}

		stream := c.client.Messages.NewStreaming(ctx, params)
		acc := newClaudeAccumulator()

		for stream.Next() {
			event := stream.Current()
			acc.process(event)

			switch e := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				u := convertAnthropicUsage(e.Message.Usage)
				if req.Hook != nil {
					if err := req.Hook.OnCallStart(0, u); err != nil {
						emitTerminal(events, &Failure{Err: err})
						return
					}
				}
				emit(ctx, events, &CallStarted{Usage: u})

			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := e.Delta.AsAny().(anthropic.TextDelta); ok {
					emit(ctx, events, &TextDelta{Text: delta.Text})
				}

			case anthropic.MessageDeltaEvent:
				if req.Hook != nil {
					req.Hook.OnOutputDelta(e.Usage.OutputTokens)
				}
				emit(ctx, events, &OutputDelta{OutputTokens: e.Usage.OutputTokens})
			}
		}

		if err := streamError(ctx, stream.Err()); err != nil {
			emitTerminal(events, &Failure{Err: err})
			return
		}

		assistantMsg, usage, stopReason := acc.message()
		total = total.Add(usage)
		working = append(working, assistantMsg)

		if stopReason == "tool_use" && assistantMsg.HasToolUse() {
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
			StopReason: stopReason,
		})
		return
	}

	emitTerminal(events, &Failure{
		Err: fmt.Errorf("max tool iterations (%d) reached", maxToolIterations),
	})
}

// claudeAccumulator folds Anthropic stream events into a message.
type claudeAccumulator struct {
	role       string
	stopReason string
	usage      types.Usage
	ordered    []*claudeBlock
	open       map[int64]*claudeBlock
}

type claudeBlock struct {
	kind      types.ContentType
	text      strings.Builder
	toolID    string
	toolName  string
	toolInput strings.Builder
}

func newClaudeAccumulator() *claudeAccumulator {
	return &claudeAccumulator{
		role: string(types.RoleAssistant),
		open: make(map[int64]*claudeBlock),
	}
}

func (a *claudeAccumulator) process(event anthropic.MessageStreamEventUnion) {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		a.role = string(e.Message.Role)
		a.usage = convertAnthropicUsage(e.Message.Usage)

	case anthropic.ContentBlockStartEvent:
		block := &claudeBlock{}
		switch content := e.ContentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			block.kind = types.ContentTypeText
			block.text.WriteString(content.Text)
		case anthropic.ToolUseBlock:
			block.kind = types.ContentTypeToolUse
			block.toolID = content.ID
			block.toolName = content.Name
		default:
			block.kind = types.ContentTypeText
		}
		a.open[e.Index] = block
		a.ordered = append(a.ordered, block)

	case anthropic.ContentBlockDeltaEvent:
		block, exists := a.open[e.Index]
		if !exists {
			return
		}
		switch delta := e.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			block.text.WriteString(delta.Text)
		case anthropic.InputJSONDelta:
			block.toolInput.WriteString(delta.PartialJSON)
		}

	case anthropic.ContentBlockStopEvent:
		delete(a.open, e.Index)

	case anthropic.MessageDeltaEvent:
		a.stopReason = string(e.Delta.StopReason)
		a.usage.OutputTokens = e.Usage.OutputTokens
	}
}

func (a *claudeAccumulator) message() (types.Message, types.Usage, string) {
	content := make([]types.ContentBlock, 0, len(a.ordered))
	for _, block := range a.ordered {
		switch block.kind {
		case types.ContentTypeToolUse:
			input := block.toolInput.String()
			if input == "" {
				input = "{}"
			}
			content = append(content, types.ContentBlock{
				Type:      types.ContentTypeToolUse,
				ToolUseID: block.toolID,
				ToolName:  block.toolName,
				ToolInput: json.RawMessage(input),
			})
		default:
			content = append(content, types.ContentBlock{
				Type: types.ContentTypeText,
				Text: block.text.String(),
			})
		}
	}

	msg := types.Message{
		ID:        uuid.New().String(),
		Role:      types.Role(a.role),
		Content:   content,
		CreatedAt: time.Now(),
	}
	return msg, a.usage, a.stopReason
}

// toAnthropicMessages converts conversation history to API parameters.
func toAnthropicMessages(messages []types.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			blocks = append(blocks, toAnthropicBlock(block))
		}
		params = append(params, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: blocks,
		})
	}
	return params
}

func toAnthropicBlock(block types.ContentBlock) anthropic.ContentBlockParamUnion {
	switch block.Type {
	case types.ContentTypeToolUse:
		var input any
		if len(block.ToolInput) > 0 {
			_ = json.Unmarshal(block.ToolInput, &input)
		}
		// The API requires a dictionary, not null
		if input == nil {
			input = map[string]any{}
		}
		return anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolName)

	case types.ContentTypeToolResult:
		return anthropic.NewToolResultBlock(block.ToolResultID, block.ToolContent, block.IsError)

	default:
		return anthropic.NewTextBlock(block.Text)
	}
}

// toAnthropicTools converts tool definitions to API parameters.
func toAnthropicTools(tools []tool.Tool) []anthropic.ToolUnionParam {
	unions := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := t.InputSchema()

		properties := make(map[string]any, len(schema.Properties))
		for name, prop := range schema.Properties {
			properties[name] = prop.AsMap()
		}

		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: properties,
		}
		if len(schema.Required) > 0 {
			inputSchema.Required = schema.Required
		}

		param := anthropic.ToolParam{
			Name:        t.Name(),
			Description: anthropic.String(t.Description()),
			InputSchema: inputSchema,
		}
		unions = append(unions, anthropic.ToolUnionParam{OfTool: &param})
	}
	return unions
}

func convertAnthropicUsage(u anthropic.Usage) types.Usage {
	return types.Usage{
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationInputTokens,
		CacheReadTokens:     u.CacheReadInputTokens,
	}
}

// IsRetryableAnthropicError reports whether an API error should be retried.
func IsRetryableAnthropicError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
}
