// Package codelet provides an interactive AI agent session runtime for Go.
//
// A Session streams model responses through a uniform chunk protocol,
// tracks token usage against the active model's context window, and
// automatically compacts the conversation when usage approaches the
// window, preserving the context needed to continue (active files, goals,
// error states, build status).
//
// # Quick Start
//
// Create a session; backends are detected from ANTHROPIC_API_KEY and
// OPENAI_API_KEY:
//
//	session, err := codelet.New(
//	    codelet.Config{
//	        SystemPrompt: "You are a helpful coding assistant",
//	    },
//	    codelet.WithTools(builtin.DefaultTools()...),
//	)
//
// Prompt it and consume the chunk stream:
//
//	err = session.Prompt(ctx, "Fix the failing test in parser_test.go", func(c streaming.Chunk) {
//	    switch chunk := c.(type) {
//	    case *streaming.Text:
//	        fmt.Print(chunk.Content)
//	    case *streaming.Done:
//	        fmt.Println()
//	    }
//	})
//
// Every Prompt call ends with exactly one terminal chunk: Done on
// success, Error on failure, Interrupted when the user cancelled.
//
// # Interruption
//
// Interrupt is safe from any goroutine and takes effect at the next
// chunk boundary, even while the loop is blocked on network I/O:
//
//	go func() {
//	    <-userPressedEscape
//	    session.Interrupt()
//	}()
//
// Text already streamed before the interrupt stays in history as a
// partial assistant turn. Input typed during the stream can be queued
// with QueueInput and rides out on the Interrupted chunk.
//
// # Context Compaction
//
// When cumulative usage meets 90% of the context window, the in-flight
// stream is cancelled, older turns are summarized behind the most recent
// anchor (a detected milestone such as an error fix verified by tests),
// and the prompt is retried transparently, at most once per call.
// Manual compaction is available too:
//
//	result, err := session.Compact(ctx)
//	fmt.Printf("compressed %.0f%%\n", result.Metrics.CompressionPercent())
//
// # Custom Tools
//
// Implement the tool.Tool interface:
//
//	type MyTool struct{}
//
//	func (t *MyTool) Name() string        { return "my_tool" }
//	func (t *MyTool) Description() string { return "Does something useful" }
//	func (t *MyTool) InputSchema() tool.Schema {
//	    return tool.Schema{
//	        Type: "object",
//	        Properties: map[string]tool.Property{
//	            "param": {Type: "string", Description: "A parameter"},
//	        },
//	        Required: []string{"param"},
//	    }
//	}
//	func (t *MyTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
//	    return "result", nil
//	}
//
// # Persistence
//
// The session defines no storage format; it flattens history to
// MessageView pairs and restores from them:
//
//	views := session.Messages()      // persist however you like
//	session.RestoreMessages(views)   // token counters re-estimated
package codelet
