package types

// approxBytesPerToken is the byte-to-token ratio used for local
// estimation when the server has not yet reported usage.
const approxBytesPerToken = 4

// EstimateTokens approximates the token count of a text as
// ceil(len/4). Returns 0 for empty text.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + approxBytesPerToken - 1) / approxBytesPerToken
}

// EstimateMessageTokens approximates the token count of a message by
// summing the estimates of its text, tool inputs, and tool results.
func EstimateMessageTokens(msg Message) int {
	total := 0
	for _, block := range msg.Content {
		switch block.Type {
		case ContentTypeText:
			total += EstimateTokens(block.Text)
		case ContentTypeToolUse:
			total += EstimateTokens(block.ToolName)
			total += EstimateTokens(string(block.ToolInput))
		case ContentTypeToolResult:
			total += EstimateTokens(block.ToolContent)
		}
	}
	return total
}
