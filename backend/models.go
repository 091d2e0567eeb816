package backend

// ModelInfo contains model-specific parameters.
type ModelInfo struct {
	ContextWindow    int
	DefaultMaxTokens int
}

// KnownModels maps model IDs to their capabilities.
var KnownModels = map[string]ModelInfo{
	// Claude 4 models
	"claude-sonnet-4-5-20250929": {ContextWindow: 200_000, DefaultMaxTokens: 16384},
	"claude-opus-4-5-20251101":   {ContextWindow: 200_000, DefaultMaxTokens: 16384},
	// Claude 3.5 models
	"claude-3-5-sonnet-20241022": {ContextWindow: 200_000, DefaultMaxTokens: 8192},
	"claude-3-5-haiku-20241022":  {ContextWindow: 200_000, DefaultMaxTokens: 8192},
	// OpenAI models
	"gpt-4o":      {ContextWindow: 128_000, DefaultMaxTokens: 16384},
	"gpt-4o-mini": {ContextWindow: 128_000, DefaultMaxTokens: 16384},
	"gpt-4.1":     {ContextWindow: 128_000, DefaultMaxTokens: 16384},
}

// GetModelInfo returns model info, using conservative defaults for
// unknown models.
func GetModelInfo(model string) ModelInfo {
	if info, ok := KnownModels[model]; ok {
		return info
	}
	return ModelInfo{ContextWindow: 128_000, DefaultMaxTokens: 8192}
}
