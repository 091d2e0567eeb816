package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestExecute_Timeout(t *testing.T) {
	registry := NewRegistry()

	// Create a tool that waits
	slowTool := NewFuncTool(
		"slow",
		"A slow tool",
		Schema{Type: "object", Properties: map[string]Property{}},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * 5):
				return "done", nil
			}
		},
	)
	if err := registry.Register(slowTool); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	executor := NewExecutor(registry)
	executor.SetDefaultTimeout(50 * time.Millisecond)

	result := executor.Execute(context.Background(), Request{ID: "1", Name: "slow", Input: json.RawMessage(`{}`)})

	if result.Err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
	if !errors.Is(result.Err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", result.Err)
	}
}

func TestExecute_ToolNotFound(t *testing.T) {
	registry := NewRegistry()
	executor := NewExecutor(registry)

	result := executor.Execute(context.Background(), Request{ID: "1", Name: "nonexistent", Input: json.RawMessage(`{}`)})

	if result.Err == nil {
		t.Fatal("Expected error for nonexistent tool")
	}
	if !errors.Is(result.Err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", result.Err)
	}
}

func TestExecute_InvalidInput(t *testing.T) {
	registry := NewRegistry()

	strictTool := NewFuncTool(
		"strict",
		"Requires a path",
		Schema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string"},
			},
			Required: []string{"path"},
		},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			return "ok", nil
		},
	)
	registry.Register(strictTool)

	executor := NewExecutor(registry)

	result := executor.Execute(context.Background(), Request{ID: "1", Name: "strict", Input: json.RawMessage(`{}`)})

	if result.Err == nil {
		t.Error("Expected validation error for missing required field")
	}
}

func TestExecute_PanicRecovery(t *testing.T) {
	registry := NewRegistry()

	panicTool := NewFuncTool(
		"panicky",
		"Always panics",
		Schema{Type: "object", Properties: map[string]Property{}},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			panic("boom")
		},
	)
	registry.Register(panicTool)

	executor := NewExecutor(registry)

	result := executor.Execute(context.Background(), Request{ID: "1", Name: "panicky", Input: json.RawMessage(`{}`)})

	if result.Err == nil {
		t.Fatal("Expected error from panicking tool")
	}
	if !errors.Is(result.Err, ErrPanicked) {
		t.Errorf("Expected ErrPanicked, got %v", result.Err)
	}
}

func TestExecuteBatch_PreservesOrder(t *testing.T) {
	registry := NewRegistry()

	var order []int
	orderTool := NewFuncTool(
		"order",
		"Records execution order",
		Schema{Type: "object", Properties: map[string]Property{
			"id": {Type: "integer"},
		}},
		func(ctx context.Context, input json.RawMessage) (string, error) {
			var params struct{ ID int }
			json.Unmarshal(input, &params)
			order = append(order, params.ID)
			return "ok", nil
		},
	)
	registry.Register(orderTool)

	executor := NewExecutor(registry)

	reqs := []Request{
		{ID: "1", Name: "order", Input: json.RawMessage(`{"id": 1}`)},
		{ID: "2", Name: "order", Input: json.RawMessage(`{"id": 2}`)},
		{ID: "3", Name: "order", Input: json.RawMessage(`{"id": 3}`)},
	}

	results := executor.ExecuteBatch(context.Background(), reqs)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	for i, id := range []int{1, 2, 3} {
		if order[i] != id {
			t.Errorf("Expected order[%d] = %d, got %d", i, id, order[i])
		}
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("Result %d has error: %v", i, r.Err)
		}
	}
}

func TestExecuteBatch_Empty(t *testing.T) {
	registry := NewRegistry()
	executor := NewExecutor(registry)

	results := executor.ExecuteBatch(context.Background(), []Request{})

	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}
