package codelet

import (
	"time"

	"github.com/sengac/codelet/backend"
	"github.com/sengac/codelet/hooks"
	"github.com/sengac/codelet/tool"
)

// Option is a functional option for configuring a Session
type Option func(*internalConfig) error

// WithLogger sets the logger. *slog.Logger satisfies the interface.
func WithLogger(logger Logger) Option {
	return func(c *internalConfig) error {
		if logger == nil {
			return NewSessionError("WithLogger", ErrInvalidConfig).
				WithContext("reason", "logger must not be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithTools registers tools with the session
func WithTools(tools ...tool.Tool) Option {
	return func(c *internalConfig) error {
		for _, t := range tools {
			// Validate tool schema
			schema := t.InputSchema()
			if schema.Type != "object" {
				return NewSessionError("WithTools", ErrInvalidConfig).
					WithContext("tool", t.Name()).
					WithContext("reason", "schema type must be 'object'")
			}
			c.tools = append(c.tools, t)
		}
		return nil
	}
}

// WithBackend injects a backend instead of detecting one from the
// environment. May be given more than once; the first becomes active.
func WithBackend(b backend.Backend) Option {
	return func(c *internalConfig) error {
		if b == nil {
			return NewSessionError("WithBackend", ErrInvalidConfig).
				WithContext("reason", "backend must not be nil")
		}
		c.backends = append(c.backends, b)
		return nil
	}
}

// WithBackends injects the full backend set, replacing detection.
func WithBackends(backends ...backend.Backend) Option {
	return func(c *internalConfig) error {
		for _, b := range backends {
			if b == nil {
				return NewSessionError("WithBackends", ErrInvalidConfig).
					WithContext("reason", "backend must not be nil")
			}
		}
		c.backends = append(c.backends, backends...)
		return nil
	}
}

// WithWaiter sets the wait substrate the prompt loop selects on for
// external interrupts. Defaults to a HostWaiter.
func WithWaiter(w Waiter) Option {
	return func(c *internalConfig) error {
		if w == nil {
			return NewSessionError("WithWaiter", ErrInvalidConfig).
				WithContext("reason", "waiter must not be nil")
		}
		c.waiter = w
		return nil
	}
}

// WithSystemPrompt overrides the system prompt from Config
func WithSystemPrompt(prompt string) Option {
	return func(c *internalConfig) error {
		if prompt == "" {
			return NewSessionError("WithSystemPrompt", ErrInvalidConfig).
				WithContext("reason", "prompt must not be empty")
		}
		c.systemPrompt = prompt
		return nil
	}
}

// WithMaxTokens caps the response length per model call. The default is
// the active model's own limit.
func WithMaxTokens(n int64) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewSessionError("WithMaxTokens", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be positive")
		}
		c.maxTokens = n
		return nil
	}
}

// WithKeepRecentTurns sets how many recent turns compaction always keeps
// verbatim (2 or 3)
func WithKeepRecentTurns(n int) Option {
	return func(c *internalConfig) error {
		if n < 2 || n > 3 {
			return NewSessionError("WithKeepRecentTurns", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be 2 or 3")
		}
		c.keepRecentTurns = n
		return nil
	}
}

// WithMinAnchorConfidence sets the confidence floor for anchor detection
// (0.0-1.0, default 0.9)
func WithMinAnchorConfidence(confidence float64) Option {
	return func(c *internalConfig) error {
		if confidence < 0 || confidence > 1 {
			return NewSessionError("WithMinAnchorConfidence", ErrInvalidConfig).
				WithContext("confidence", confidence).
				WithContext("reason", "must be between 0 and 1")
		}
		c.minAnchorConfidence = confidence
		return nil
	}
}

// WithStatusInterval sets the period of the progress tick emitted while
// streaming (default 1s)
func WithStatusInterval(interval time.Duration) Option {
	return func(c *internalConfig) error {
		if interval <= 0 {
			return NewSessionError("WithStatusInterval", ErrInvalidConfig).
				WithContext("interval", interval).
				WithContext("reason", "must be positive")
		}
		c.statusInterval = interval
		return nil
	}
}

// WithHooks installs a pre-built lifecycle hook registry
func WithHooks(registry *hooks.Registry) Option {
	return func(c *internalConfig) error {
		if registry == nil {
			return NewSessionError("WithHooks", ErrInvalidConfig).
				WithContext("reason", "registry must not be nil")
		}
		c.hooks = registry
		return nil
	}
}
