package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

// Bot is the part of the Bot API the router itself calls.
type Bot interface {
	SendMessage(ctx context.Context, req botapi.SendMessageRequest) (*botapi.Message, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallbackQuery(ctx context.Context, req botapi.AnswerCallbackQueryRequest) error
}

// Identity is the bot's own account.
type Identity struct {
	ID       int64
	Username string
}

// Kind classifies an update for routing and metrics.
type Kind string

// Update kinds.
const (
	KindCommand  Kind = "command"
	KindCallback Kind = "callback"
	KindJoin     Kind = "join"
	KindLeave    Kind = "leave"
	KindMessage  Kind = "message"
	KindIgnored  Kind = "ignored"
)

// Event is the per-update context handed to handlers.
type Event struct {
	// ID correlates every log line and span of one update.
	ID     string
	Kind   Kind
	Update botapi.Update

	// Message is the update's message; for callbacks it is the message
	// carrying the pressed button and may be nil.
	Message  *botapi.Message
	Callback *botapi.CallbackQuery
	Chat     botapi.Chat
	From     *botapi.User

	// Command is the lowercased command name without prefix or @mention.
	Command string
	// Args are the whitespace separated words after the command.
	Args []string
	// RawArgs is the text after the command, untrimmed of inner spacing.
	RawArgs string

	Self   Identity
	Bot    Bot
	Logger *slog.Logger
}

// Reply sends text to the event's chat, replying to the triggering
// message when there is one.
func (e *Event) Reply(ctx context.Context, text, parseMode string) (*botapi.Message, error) {
	req := botapi.SendMessageRequest{
		ChatID:                   e.Chat.ID,
		Text:                     text,
		ParseMode:                parseMode,
		AllowSendingWithoutReply: true,
	}
	if e.Message != nil && e.Kind != KindCallback {
		req.ReplyToMessageID = e.Message.MessageID
	}
	return e.Bot.SendMessage(ctx, req)
}

// Answer answers the event's callback query. It is a no-op for other kinds.
func (e *Event) Answer(ctx context.Context, text string, alert bool) error {
	if e.Callback == nil {
		return nil
	}
	return e.Bot.AnswerCallbackQuery(ctx, botapi.AnswerCallbackQueryRequest{
		CallbackQueryID: e.Callback.ID,
		Text:            text,
		ShowAlert:       alert,
	})
}

// newEvent classifies u and fills the routing fields.
func newEvent(id string, u botapi.Update, self Identity) *Event {
	e := &Event{ID: id, Update: u, Self: self, Kind: KindIgnored}

	switch {
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		e.Kind = KindCallback
		e.Callback = cb
		e.From = &cb.From
		e.Message = cb.Message
		if cb.Message != nil {
			e.Chat = cb.Message.Chat
		} else {
			e.Chat = botapi.Chat{ID: cb.From.ID, Type: botapi.ChatPrivate}
		}

	case u.Message != nil:
		m := u.Message
		e.Message = m
		e.Chat = m.Chat
		e.From = m.From
		switch {
		case len(m.NewChatMembers) > 0:
			e.Kind = KindJoin
		case m.LeftChatMember != nil:
			e.Kind = KindLeave
		default:
			if name, raw, ok := parseCommand(m.Text, self.Username); ok {
				e.Kind = KindCommand
				e.Command = name
				e.RawArgs = raw
				e.Args = strings.Fields(raw)
			} else if m.Text != "" || m.Caption != "" {
				e.Kind = KindMessage
			}
		}
	}
	return e
}

// parseCommand extracts the command of a "/name[@bot] args" or "!name args"
// message. Commands addressed to another bot are not ours.
func parseCommand(text, botUsername string) (name, rawArgs string, ok bool) {
	if len(text) < 2 || (text[0] != '/' && text[0] != '!') {
		return "", "", false
	}
	word, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexAny(word, "\n"); i >= 0 {
		rest = word[i+1:] + " " + rest
		word = word[:i]
	}
	word, target, addressed := strings.Cut(word, "@")
	if addressed && !strings.EqualFold(target, botUsername) {
		return "", "", false
	}
	if word == "" {
		return "", "", false
	}
	return strings.ToLower(word), strings.TrimSpace(rest), true
}

// laneID is the chat an update is serialized on.
func laneID(u botapi.Update) int64 {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID
	case u.CallbackQuery != nil:
		return u.CallbackQuery.From.ID
	case u.EditedMessage != nil:
		return u.EditedMessage.Chat.ID
	default:
		return 0
	}
}
