package compaction

import (
	"github.com/sengac/codelet/types"
)

// EstimateTurnTokens approximates the token footprint of a turn: user
// input, response, tool parameters, and tool outputs.
func EstimateTurnTokens(t Turn) int {
	total := types.EstimateTokens(t.UserInput)
	total += types.EstimateTokens(t.Response)
	for _, call := range t.ToolCalls {
		total += types.EstimateTokens(call.Name)
		total += types.EstimateTokens(string(call.Parameters))
	}
	for _, result := range t.ToolResults {
		total += types.EstimateTokens(result.Output)
	}
	return total
}

// EstimateTurnsTokens sums the estimates over a slice of turns.
func EstimateTurnsTokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += EstimateTurnTokens(t)
	}
	return total
}
