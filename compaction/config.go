package compaction

import (
	"fmt"
)

// Default configuration values.
const (
	// DefaultKeepRecentTurns is how many trailing turns survive compaction
	// untouched.
	DefaultKeepRecentTurns = 3

	// DefaultMinAnchorConfidence is the confidence floor for anchor
	// detection.
	DefaultMinAnchorConfidence = 0.9

	// DefaultMinCompressionRatio is the ratio below which a compaction
	// result is considered marginal and logged.
	DefaultMinCompressionRatio = 0.6
)

// Config holds compaction configuration.
type Config struct {
	// KeepRecentTurns is the number of trailing turns that are never
	// summarized. Must be 2 or 3.
	// Default: 3
	KeepRecentTurns int

	// MinAnchorConfidence is the minimum confidence for an anchor to be
	// considered (0.0-1.0).
	// Default: 0.9
	MinAnchorConfidence float64

	// MinCompressionRatio is the compression ratio below which the result
	// is logged as marginal. Compaction never fails on ratio alone.
	// Default: 0.6
	MinCompressionRatio float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		KeepRecentTurns:     DefaultKeepRecentTurns,
		MinAnchorConfidence: DefaultMinAnchorConfidence,
		MinCompressionRatio: DefaultMinCompressionRatio,
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.KeepRecentTurns < 2 || c.KeepRecentTurns > 3 {
		return fmt.Errorf("%w: keep_recent_turns must be 2 or 3, got %d",
			ErrInvalidConfig, c.KeepRecentTurns)
	}

	if c.MinAnchorConfidence < 0 || c.MinAnchorConfidence > 1.0 {
		return fmt.Errorf("%w: min_anchor_confidence must be between 0 and 1, got %f",
			ErrInvalidConfig, c.MinAnchorConfidence)
	}

	if c.MinCompressionRatio < 0 || c.MinCompressionRatio > 1.0 {
		return fmt.Errorf("%w: min_compression_ratio must be between 0 and 1, got %f",
			ErrInvalidConfig, c.MinCompressionRatio)
	}

	return nil
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.KeepRecentTurns == 0 {
		c.KeepRecentTurns = DefaultKeepRecentTurns
	}
	if c.MinAnchorConfidence == 0 {
		c.MinAnchorConfidence = DefaultMinAnchorConfidence
	}
	if c.MinCompressionRatio == 0 {
		c.MinCompressionRatio = DefaultMinCompressionRatio
	}
}
