package stream

import (
	"regexp"
	"strings"
)

var thinkSpanPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes any complete thinking spans left in fully assembled
// text and trims a literal leading "Answer:" prefix. It is a safety net
// behind the incremental parser for text that never passed through it.
func StripThinking(text string) string {
	text = thinkSpanPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "Answer:")
	return strings.TrimSpace(text)
}
