package markup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

// Button is a URL button stored with a template. SameLine places it on the
// row of the previous button.
type Button struct {
	Text     string `json:"text"`
	URL      string `json:"url"`
	SameLine bool   `json:"same_line,omitempty"`
}

// [label](buttonurl://example.com) or [label](buttonurl:example.com:same)
var buttonRe = regexp.MustCompile(`\[([^\[\]]+?)\]\(buttonurl:(?:/{0,2})(.+?)(:same)?\)`)

// ParseButtons extracts button markup from text and returns the remaining
// text together with the buttons in order. A button preceded by an odd
// number of backslashes is treated as literal text.
func ParseButtons(text string) (string, []Button) {
	var (
		buttons []Button
		out     strings.Builder
		prev    int
	)
	for _, loc := range buttonRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		if escaped(text, start) {
			continue
		}
		out.WriteString(text[prev:start])
		prev = end
		buttons = append(buttons, Button{
			Text:     text[loc[2]:loc[3]],
			URL:      text[loc[4]:loc[5]],
			SameLine: loc[6] >= 0,
		})
	}
	out.WriteString(text[prev:])
	return strings.TrimRight(out.String(), " \n"), buttons
}

func escaped(text string, at int) bool {
	n := 0
	for i := at - 1; i >= 0 && text[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// RevertButtons renders buttons back into their markup form.
func RevertButtons(buttons []Button) string {
	var b strings.Builder
	for _, btn := range buttons {
		if btn.SameLine {
			fmt.Fprintf(&b, "\n[%s](buttonurl://%s:same)", btn.Text, btn.URL)
		} else {
			fmt.Fprintf(&b, "\n[%s](buttonurl://%s)", btn.Text, btn.URL)
		}
	}
	return b.String()
}

// Keyboard lays buttons out in rows. It returns nil when there are none.
func Keyboard(buttons []Button) *botapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	var rows [][]botapi.InlineKeyboardButton
	for _, btn := range buttons {
		kb := botapi.InlineKeyboardButton{Text: btn.Text, URL: btn.URL}
		if btn.SameLine && len(rows) > 0 {
			rows[len(rows)-1] = append(rows[len(rows)-1], kb)
			continue
		}
		rows = append(rows, []botapi.InlineKeyboardButton{kb})
	}
	return &botapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
