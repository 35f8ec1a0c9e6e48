package chat

import "strings"

// EstimateTokens approximates the token count of text at 1.33 tokens per word.
// Only used to size requests in debug logs.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return max(int(float64(words)*1.33), 1)
}
