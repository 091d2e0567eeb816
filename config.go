package codelet

import (
	"fmt"
	"time"

	"github.com/sengac/codelet/backend"
	"github.com/sengac/codelet/compaction"
	"github.com/sengac/codelet/hooks"
	"github.com/sengac/codelet/tool"
)

// ModelInfo contains model-specific parameters.
type ModelInfo = backend.ModelInfo

// KnownModels maps model IDs to their capabilities.
var KnownModels = backend.KnownModels

// GetModelInfo returns model info, using sensible defaults for unknown
// models.
func GetModelInfo(model string) ModelInfo {
	return backend.GetModelInfo(model)
}

// Config holds the required configuration for a session. Backends are
// detected from the environment unless injected via WithBackend.
//
// Example:
//
//	session, _ := codelet.New(codelet.Config{
//	    SystemPrompt: "You are a helpful coding assistant",
//	})
type Config struct {
	// SystemPrompt is the system prompt for the session (required)
	SystemPrompt string

	// Model overrides the detected backend's default model (optional)
	// Examples: "claude-sonnet-4-5-20250929", "gpt-4o"
	Model string
}

// DefaultConfig returns a configuration suitable for a general-purpose
// coding session.
func DefaultConfig() Config {
	return Config{
		SystemPrompt: "You are a helpful coding assistant.",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SystemPrompt == "" {
		return fmt.Errorf("%w: SystemPrompt is required", ErrInvalidConfig)
	}
	return nil
}

// DefaultStatusInterval is the period of the progress tick emitted while
// a stream is running.
const DefaultStatusInterval = time.Second

// internalConfig holds the full session configuration including optional
// parameters.
type internalConfig struct {
	// Required from Config
	systemPrompt string
	model        string

	// Optional parameters
	maxTokens           int64
	statusInterval      time.Duration
	keepRecentTurns     int
	minAnchorConfidence float64

	// Internal state
	logger   Logger
	backends []backend.Backend
	waiter   Waiter
	tools    []tool.Tool
	hooks    *hooks.Registry
}

// newInternalConfig creates a new internal config from the public Config.
func newInternalConfig(cfg Config) *internalConfig {
	return &internalConfig{
		systemPrompt: cfg.SystemPrompt,
		model:        cfg.Model,

		// Defaults; maxTokens 0 lets each backend pick its model default.
		statusInterval:      DefaultStatusInterval,
		keepRecentTurns:     compaction.DefaultKeepRecentTurns,
		minAnchorConfidence: compaction.DefaultMinAnchorConfidence,

		logger: noopLogger{},
		tools:  []tool.Tool{},
		hooks:  hooks.NewRegistry(),
	}
}
