package markup

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the Bot API limit for a text message, in characters.
const MaxMessageLength = 4096

// Split breaks text into chunks of at most maxLen characters, cutting at
// line boundaries where possible. A single line longer than maxLen is cut
// at rune boundaries. maxLen <= 0 disables splitting.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line) + 1
		if currentLen+lineLen > maxLen {
			flush()
			if lineLen > maxLen {
				chunks = append(chunks, forceSplit(line, maxLen)...)
				continue
			}
		}
		current.WriteString(line)
		current.WriteByte('\n')
		currentLen += lineLen
	}
	flush()

	return chunks
}

func forceSplit(line string, maxLen int) []string {
	var parts []string
	runes := []rune(line)
	for len(runes) > maxLen {
		parts = append(parts, string(runes[:maxLen]))
		runes = runes[maxLen:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
