package utils

// Truncate shortens s to at most maxLen runes and appends "..." when it
// trims anything. Cutting at rune boundaries keeps previews of captured
// event data valid UTF-8 instead of ending mid-character.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
