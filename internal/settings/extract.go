package settings

import (
	"github.com/flemzord/gatekeep/internal/markup"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// Content is a template taken from a command message: the text after the
// command, or the message it replies to.
type Content struct {
	Type    ContentType
	Text    string
	FileID  string
	Buttons []markup.Button
}

// ExtractContent builds the Content of a /setwelcome, /setgoodbye or /save
// command. args is the command text after the command word (and, for
// notes, after the note name). The replied-to message wins when present;
// otherwise args is used. ok is false when there is nothing to store.
func ExtractContent(msg *botapi.Message, args string) (Content, bool) {
	if msg == nil {
		return Content{}, false
	}

	if r := msg.ReplyToMessage; r != nil {
		text := r.Text
		if text == "" {
			text = r.Caption
		}
		if args != "" && r.Text != "" {
			// An explicit body overrides the replied text.
			text = args
		}
		text, buttons := markup.ParseButtons(text)
		c := Content{Text: text, Buttons: buttons}
		switch {
		case r.Sticker != nil:
			c.Type, c.FileID = TypeSticker, r.Sticker.FileID
		case r.Document != nil:
			c.Type, c.FileID = TypeDocument, r.Document.FileID
		case len(r.Photo) > 0:
			c.Type, c.FileID = TypePhoto, r.Photo[len(r.Photo)-1].FileID
		case r.Audio != nil:
			c.Type, c.FileID = TypeAudio, r.Audio.FileID
		case r.Voice != nil:
			c.Type, c.FileID = TypeVoice, r.Voice.FileID
		case r.Video != nil:
			c.Type, c.FileID = TypeVideo, r.Video.FileID
		default:
			c.Type = textType(buttons)
			if c.Text == "" && len(buttons) == 0 {
				return Content{}, false
			}
		}
		return c, true
	}

	if args == "" {
		return Content{}, false
	}
	text, buttons := markup.ParseButtons(args)
	if text == "" && len(buttons) == 0 {
		return Content{}, false
	}
	return Content{Type: textType(buttons), Text: text, Buttons: buttons}, true
}

func textType(buttons []markup.Button) ContentType {
	if len(buttons) > 0 {
		return TypeButtonText
	}
	return TypeText
}

// Greeting converts c into an enabled Greeting.
func (c Content) Greeting() Greeting {
	return Greeting{Enabled: true, Type: c.Type, Text: c.Text, FileID: c.FileID, Buttons: c.Buttons}
}
