// Package markup formats user-authored message templates: placeholder
// substitution, Markdown escaping, and inline button syntax.
package markup

import (
	"fmt"
	"html"
	"math/rand/v2"
	"regexp"
	"strings"
)

// Placeholder names recognized in welcome, goodbye and note templates.
const (
	First    = "first"
	Last     = "last"
	FullName = "fullname"
	Username = "username"
	ID       = "id"
	Count    = "count"
	ChatName = "chatname"
	Mention  = "mention"
)

// WelcomeFields lists the placeholders valid in welcome and goodbye templates.
var WelcomeFields = []string{First, Last, FullName, Username, ID, Count, ChatName, Mention}

// NoteFields lists the placeholders valid in notes.
var NoteFields = []string{First, Last, FullName, Username, ID, ChatName, Mention}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Fill substitutes every {name} whose name is in allowed and present in
// values. Anything else, including unknown or disallowed placeholders and
// stray braces, is left verbatim.
func Fill(template string, allowed []string, values map[string]string) string {
	permitted := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		permitted[a] = struct{}{}
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		if _, ok := permitted[name]; !ok {
			return m
		}
		if v, ok := values[name]; ok {
			return v
		}
		return m
	})
}

// Uses reports whether template references {name}.
func Uses(template, name string) bool {
	return strings.Contains(template, "{"+name+"}")
}

var markdownReplacer = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// EscapeMarkdown escapes the characters significant in legacy Markdown.
func EscapeMarkdown(s string) string {
	return markdownReplacer.Replace(s)
}

// MentionMarkdown returns a legacy-Markdown link that mentions the user.
func MentionMarkdown(userID int64, name string) string {
	return fmt.Sprintf("[%s](tg://user?id=%d)", EscapeMarkdown(name), userID)
}

// MentionHTML returns an HTML link that mentions the user.
func MentionHTML(userID int64, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

// PickRandom splits s on the %%% separator and returns one alternative.
func PickRandom(s string) string {
	parts := strings.Split(s, "%%%")
	if len(parts) == 1 {
		return s
	}
	return strings.TrimSpace(parts[rand.IntN(len(parts))])
}
