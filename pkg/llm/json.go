package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> blocks that reasoning models put
// before their answer.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

var thinkContentPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// ExtractThinking returns the content of the first <think> block, or "".
func ExtractThinking(response string) string {
	matches := thinkContentPattern.FindStringSubmatch(response)
	if len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

// StripThinking removes a leading <think> block.
func StripThinking(response string) string {
	return thinkTagPattern.ReplaceAllString(response, "")
}
