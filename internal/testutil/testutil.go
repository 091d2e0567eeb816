// Package testutil provides test utilities for codelet
package testutil

import (
	"os"
	"testing"
)

// RequireAnthropicKey skips the test when ANTHROPIC_API_KEY is not set,
// so live-API tests stay out of the default unit run.
func RequireAnthropicKey(t *testing.T) {
	t.Helper()
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		t.Skip("ANTHROPIC_API_KEY not set, skipping live API test")
	}
}

// RequireOpenAIKey skips the test when OPENAI_API_KEY is not set.
func RequireOpenAIKey(t *testing.T) {
	t.Helper()
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set, skipping live API test")
	}
}

// SetBackendKeys sets fake provider credentials for detection tests and
// restores the previous values on cleanup.
func SetBackendKeys(t *testing.T, anthropic, openai string) {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", anthropic)
	t.Setenv("OPENAI_API_KEY", openai)
}
