package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Executor handles tool execution with validation, timeouts and panic
// recovery. Tool failures become error-flagged results, never Go errors:
// the model sees the failure text and decides what to do next.
type Executor struct {
	registry       *Registry
	validator      *Validator
	defaultTimeout time.Duration
}

// NewExecutor creates a new tool executor
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry:       registry,
		validator:      NewValidator(),
		defaultTimeout: 30 * time.Second,
	}
}

// SetDefaultTimeout sets the default execution timeout
func (e *Executor) SetDefaultTimeout(timeout time.Duration) {
	e.defaultTimeout = timeout
}

// Request represents a single tool call requested by the model
type Request struct {
	ID    string          // Tool-use ID assigned by the backend
	Name  string          // Name of the tool to execute
	Input json.RawMessage // Input parameters
}

// Result represents the outcome of a tool execution
type Result struct {
	ID       string
	Name     string
	Input    json.RawMessage
	Output   string
	Err      error
	Duration time.Duration
}

// Execute executes a single tool call
func (e *Executor) Execute(ctx context.Context, req Request) *Result {
	start := time.Now()

	result := &Result{
		ID:    req.ID,
		Name:  req.Name,
		Input: req.Input,
	}

	if tool, exists := e.registry.Get(req.Name); exists {
		if err := e.validator.ValidateInput(tool.InputSchema(), req.Input); err != nil {
			result.Err = err
			result.Duration = time.Since(start)
			return result
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.defaultTimeout)
	defer cancel()

	output, err := e.run(execCtx, req)
	result.Output = output
	result.Err = err
	result.Duration = time.Since(start)

	if execCtx.Err() == context.DeadlineExceeded {
		result.Err = fmt.Errorf("%w after %v", ErrTimeout, e.defaultTimeout)
	}

	return result
}

// run invokes the tool, converting panics into errors so one bad tool
// cannot take down the stream loop.
func (e *Executor) run(ctx context.Context, req Request) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return e.registry.Execute(ctx, req.Name, req.Input)
}

// ExecuteBatch executes tool calls in request order. Execution is
// sequential: tools may touch the same files and the model assumes
// results arrive in call order.
func (e *Executor) ExecuteBatch(ctx context.Context, reqs []Request) []*Result {
	results := make([]*Result, len(reqs))
	for i, req := range reqs {
		results[i] = e.Execute(ctx, req)
	}
	return results
}

// ValidateInput validates tool input against its schema
func (e *Executor) ValidateInput(toolName string, input json.RawMessage) error {
	tool, exists := e.registry.Get(toolName)
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, toolName)
	}

	return e.validator.ValidateInput(tool.InputSchema(), input)
}
