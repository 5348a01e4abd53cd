package router

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// Target resolves the user a moderation command acts on. The sender of a
// replied-to message wins, then a text mention, then a numeric id as the
// first argument. rest holds the arguments left after the target.
func (e *Event) Target() (userID int64, rest []string, ok bool) {
	msg := e.Message
	if msg == nil {
		return 0, nil, false
	}

	if r := msg.ReplyToMessage; r != nil && r.From != nil {
		return r.From.ID, e.Args, true
	}

	for _, ent := range msg.Entities {
		if ent.Type != "text_mention" || ent.User == nil {
			continue
		}
		return ent.User.ID, strings.Fields(afterEntity(msg.Text, ent.Offset+ent.Length)), true
	}

	if len(e.Args) == 0 {
		return 0, nil, false
	}
	id, err := strconv.ParseInt(e.Args[0], 10, 64)
	if err != nil {
		return 0, nil, false
	}
	return id, e.Args[1:], true
}

// afterEntity returns the text following a UTF-16 offset, the unit Bot API
// entities are measured in.
func afterEntity(text string, end int) string {
	units := utf16.Encode([]rune(text))
	if end >= len(units) {
		return ""
	}
	return string(utf16.Decode(units[end:]))
}
