// Package stats computes display statistics for a piece of prompt text.
package stats

import (
	"strings"
	"unicode/utf8"
)

// TextStats summarizes a text for status-bar display. Tokens is a rough
// estimate (about four characters per token), not a vendor tokenizer count.
type TextStats struct {
	Characters int `json:"characters"`
	Words      int `json:"words"`
	Lines      int `json:"lines"`
	Tokens     int `json:"tokens"`
}

// Measure computes stats for text.
func Measure(text string) TextStats {
	chars := utf8.RuneCountInString(text)
	lines := 0
	if text != "" {
		lines = strings.Count(text, "\n") + 1
	}
	return TextStats{
		Characters: chars,
		Words:      len(strings.Fields(text)),
		Lines:      lines,
		Tokens:     (chars + 3) / 4,
	}
}
