package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sengac/codelet/compaction"
	"github.com/sengac/codelet/types"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
}

func TestOnBeforePrompt(t *testing.T) {
	r := NewRegistry()
	var gotSession, gotInput string

	r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		gotSession = sessionID
		gotInput = input
		return nil
	})

	err := r.TriggerBeforePrompt(context.Background(), "session-123", "hello")
	if err != nil {
		t.Errorf("TriggerBeforePrompt returned error: %v", err)
	}
	if gotSession != "session-123" {
		t.Errorf("expected sessionID 'session-123', got '%s'", gotSession)
	}
	if gotInput != "hello" {
		t.Errorf("expected input 'hello', got '%s'", gotInput)
	}
}

func TestOnAfterResponse(t *testing.T) {
	r := NewRegistry()
	var gotUsage types.Usage

	r.OnAfterResponse(func(ctx context.Context, sessionID string, response types.Message, usage types.Usage) error {
		gotUsage = usage
		return nil
	})

	err := r.TriggerAfterResponse(context.Background(), "s1", types.Message{}, types.Usage{InputTokens: 10, OutputTokens: 5})
	if err != nil {
		t.Errorf("TriggerAfterResponse returned error: %v", err)
	}
	if gotUsage.InputTokens != 10 || gotUsage.OutputTokens != 5 {
		t.Errorf("usage not passed through: %+v", gotUsage)
	}
}

func TestOnToolCall(t *testing.T) {
	r := NewRegistry()
	var capturedName string
	var capturedOutput string
	var capturedErr bool

	r.OnToolCall(func(ctx context.Context, name string, input json.RawMessage, output string, isError bool) error {
		capturedName = name
		capturedOutput = output
		capturedErr = isError
		return nil
	})

	err := r.TriggerToolCall(context.Background(), "bash", nil, "test output", true)
	if err != nil {
		t.Errorf("TriggerToolCall returned error: %v", err)
	}
	if capturedName != "bash" {
		t.Errorf("expected name 'bash', got '%s'", capturedName)
	}
	if capturedOutput != "test output" {
		t.Errorf("expected output 'test output', got '%s'", capturedOutput)
	}
	if !capturedErr {
		t.Error("isError flag was not passed to hook")
	}
}

func TestOnBeforeCompaction(t *testing.T) {
	r := NewRegistry()
	var capturedSessionID string

	r.OnBeforeCompaction(func(ctx context.Context, sessionID string) error {
		capturedSessionID = sessionID
		return nil
	})

	err := r.TriggerBeforeCompaction(context.Background(), "session-123")
	if err != nil {
		t.Errorf("TriggerBeforeCompaction returned error: %v", err)
	}
	if capturedSessionID != "session-123" {
		t.Errorf("expected sessionID 'session-123', got '%s'", capturedSessionID)
	}
}

func TestOnAfterCompaction(t *testing.T) {
	r := NewRegistry()
	var capturedResult *compaction.Result

	r.OnAfterCompaction(func(ctx context.Context, sessionID string, result *compaction.Result) error {
		capturedResult = result
		return nil
	})

	testResult := &compaction.Result{
		Metrics: compaction.Metrics{
			OriginalTokens:  1000,
			CompactedTokens: 500,
		},
	}

	err := r.TriggerAfterCompaction(context.Background(), "s1", testResult)
	if err != nil {
		t.Errorf("TriggerAfterCompaction returned error: %v", err)
	}
	if capturedResult != testResult {
		t.Error("result was not passed to hook")
	}
}

func TestHookError(t *testing.T) {
	r := NewRegistry()
	expectedErr := errors.New("hook error")

	r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		return expectedErr
	})

	err := r.TriggerBeforePrompt(context.Background(), "s1", "")
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
}

func TestMultipleHooks(t *testing.T) {
	r := NewRegistry()
	callOrder := []int{}

	r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		callOrder = append(callOrder, 1)
		return nil
	})

	r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		callOrder = append(callOrder, 2)
		return nil
	})

	r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		callOrder = append(callOrder, 3)
		return nil
	})

	err := r.TriggerBeforePrompt(context.Background(), "s1", "")
	if err != nil {
		t.Errorf("TriggerBeforePrompt returned error: %v", err)
	}

	if len(callOrder) != 3 {
		t.Errorf("expected 3 hooks to be called, got %d", len(callOrder))
	}

	// Verify hooks are called in order
	for i, v := range callOrder {
		if v != i+1 {
			t.Errorf("expected call order %d at index %d, got %d", i+1, i, v)
		}
	}
}

func TestHookStopsOnError(t *testing.T) {
	r := NewRegistry()
	called := []int{}
	expectedErr := errors.New("stop here")

	r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		called = append(called, 1)
		return nil
	})

	r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		called = append(called, 2)
		return expectedErr // This should stop execution
	})

	r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		called = append(called, 3) // This should NOT be called
		return nil
	})

	err := r.TriggerBeforePrompt(context.Background(), "s1", "")
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}

	if len(called) != 2 {
		t.Errorf("expected 2 hooks to be called before error, got %d", len(called))
	}
}

func TestConcurrentHookRegistration(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	numGoroutines := 100

	// Concurrently register hooks
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
				return nil
			})
		}()
	}
	wg.Wait()

	// Trigger should work without panic
	err := r.TriggerBeforePrompt(context.Background(), "s1", "")
	if err != nil {
		t.Errorf("TriggerBeforePrompt returned error: %v", err)
	}
}

func TestConcurrentHookTrigger(t *testing.T) {
	r := NewRegistry()
	var callCount int
	var mu sync.Mutex

	r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
		mu.Lock()
		callCount++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	numGoroutines := 100

	// Concurrently trigger hooks
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			r.TriggerBeforePrompt(context.Background(), "s1", "")
		}()
	}
	wg.Wait()

	if callCount != numGoroutines {
		t.Errorf("expected %d calls, got %d", numGoroutines, callCount)
	}
}

func TestConcurrentRegistrationAndTrigger(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	// Pre-register some hooks
	for i := 0; i < 10; i++ {
		r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
			return nil
		})
	}

	// Concurrently register and trigger
	wg.Add(200)
	for i := 0; i < 100; i++ {
		go func() {
			defer wg.Done()
			r.OnBeforePrompt(func(ctx context.Context, sessionID, input string) error {
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			r.TriggerBeforePrompt(context.Background(), "s1", "")
		}()
	}
	wg.Wait()

	// No panic means success - the mutex is working
}
