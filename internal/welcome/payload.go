package welcome

import (
	"context"
	"strconv"

	"github.com/flemzord/gatekeep/internal/markup"
	"github.com/flemzord/gatekeep/internal/settings"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

const noName = "PersonWithNoName"

// Payload is a greeting resolved for one member. It is computed once when
// the member joins or leaves and never changes afterwards.
type Payload struct {
	ChatID   int64
	Type     settings.ContentType
	Text     string
	FileID   string
	Keyboard *botapi.InlineKeyboardMarkup
	// Backup is a built-in greeting sent instead of Text when the
	// configured one cannot be delivered.
	Backup string
	// ReplyTo is the service message to reply to, zero when it was cleaned.
	ReplyTo int
	// JoinMessageID is remembered for the clean-welcome cycle.
	JoinMessageID int
}

// resolve fills g for member. defaults supplies the built-in texts used when
// g carries no custom text.
func (p *Pipeline) resolve(ctx context.Context, chat botapi.Chat, member botapi.User, g settings.Greeting, defaults []string) Payload {
	first := member.FirstName
	if first == "" {
		first = noName
	}
	backup := markup.Fill(pick(defaults), []string{markup.First}, map[string]string{
		markup.First: markup.EscapeMarkdown(first),
	})

	pl := Payload{
		ChatID: chat.ID,
		Type:   g.Type,
		FileID: g.FileID,
		Backup: backup,
	}

	template := g.Text
	if template == "" && !g.Type.IsMedia() {
		pl.Type = settings.TypeText
		pl.Text = backup
		return pl
	}

	pl.Text = markup.Fill(template, markup.WelcomeFields, p.fields(ctx, chat, member, first, template))
	pl.Keyboard = markup.Keyboard(g.Buttons)
	return pl
}

// fields computes the placeholder values for member. The member count is
// only fetched when template uses it.
func (p *Pipeline) fields(ctx context.Context, chat botapi.Chat, member botapi.User, first, template string) map[string]string {
	last := member.LastName
	if last == "" {
		last = first
	}
	fullname := first
	if member.LastName != "" {
		fullname = first + " " + member.LastName
	}
	mention := markup.MentionMarkdown(member.ID, first)
	username := mention
	if member.Username != "" {
		username = "@" + markup.EscapeMarkdown(member.Username)
	}

	values := map[string]string{
		markup.First:    markup.EscapeMarkdown(first),
		markup.Last:     markup.EscapeMarkdown(last),
		markup.FullName: markup.EscapeMarkdown(fullname),
		markup.Username: username,
		markup.Mention:  mention,
		markup.ID:       strconv.FormatInt(member.ID, 10),
		markup.ChatName: markup.EscapeMarkdown(chat.Title),
	}
	if markup.Uses(template, markup.Count) {
		n, err := p.bot.GetChatMemberCount(ctx, chat.ID)
		if err != nil {
			p.logger.Warn("welcome: member count lookup failed", "chat_id", chat.ID, "error", err)
			values[markup.Count] = "?"
		} else {
			values[markup.Count] = strconv.Itoa(n)
		}
	}
	return values
}
