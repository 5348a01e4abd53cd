// Package notes implements per-chat saved notes: retrieval by /get, #name
// and /<n>, saving from text or a replied-to message, and clearing.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/flemzord/gatekeep/internal/guard"
	"github.com/flemzord/gatekeep/internal/markup"
	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/internal/router"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/settings"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// Bot is the part of the Bot API notes need.
type Bot interface {
	SendMessage(ctx context.Context, req botapi.SendMessageRequest) (*botapi.Message, error)
	SendMedia(ctx context.Context, req botapi.MediaRequest) (*botapi.Message, error)
	EditMessageText(ctx context.Context, req botapi.EditMessageTextRequest) (*botapi.Message, error)
}

// Config holds the collaborators of a Service.
type Config struct {
	Bot    Bot
	Store  settings.Store
	Oracle *role.Oracle
	Audit  *security.AuditLogger
	Logger *slog.Logger
}

// Service handles the notes commands.
type Service struct {
	bot    Bot
	store  settings.Store
	oracle *role.Oracle
	audit  *security.AuditLogger
	logger *slog.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		bot:    cfg.Bot,
		store:  cfg.Store,
		oracle: cfg.Oracle,
		audit:  cfg.Audit,
		logger: cfg.Logger.With("component", "notes"),
	}
}

// Register wires the notes commands, the #name and /<n> lookups and the
// clear-all confirmation buttons into d.
func (s *Service) Register(d *router.Dispatcher, checks *guard.Checks) error {
	admin := guard.New(checks.GroupOnly(), checks.UserAdmin())
	for _, c := range []router.Command{
		{Names: []string{"get"}, Handle: s.cmdGet},
		{Names: []string{"save"}, Guards: admin, Handle: s.cmdSave},
		{Names: []string{"clear"}, Guards: admin, Handle: s.cmdClear},
		{Names: []string{"notes", "saved"}, Handle: s.cmdList},
		{Names: []string{"removeallnotes"}, Guards: guard.New(checks.GroupOnly(), checks.CreatorOrSudo(msgOwnerOnly)), Handle: s.cmdClearAll},
	} {
		if err := d.HandleCommand(c); err != nil {
			return fmt.Errorf("notes: %w", err)
		}
	}
	d.HandleCallback(router.Callback{Prefix: CallbackPrefix, Handle: s.onClearAllButton})
	d.OnMessage(s.onMessage)
	return nil
}

func (s *Service) cmdGet(ctx context.Context, ev *router.Event) error {
	if len(ev.Args) == 0 {
		_, err := ev.Reply(ctx, msgGetUsage, "")
		return err
	}
	noformat := len(ev.Args) >= 2 && strings.EqualFold(ev.Args[1], "noformat")
	return s.send(ctx, ev, strings.ToLower(ev.Args[0]), true, noformat)
}

// onMessage serves #name hashtags and /<n> shortcuts. Unknown commands
// reach it through the dispatcher's fall-through.
func (s *Service) onMessage(ctx context.Context, ev *router.Event) error {
	if ev.Kind == router.KindCommand {
		n, err := strconv.Atoi(ev.Command)
		if err != nil {
			return nil
		}
		return s.sendNth(ctx, ev, n)
	}
	if ev.Message == nil || !strings.HasPrefix(ev.Message.Text, "#") {
		return nil
	}
	first := strings.Fields(ev.Message.Text)[0]
	name := strings.ToLower(strings.TrimPrefix(first, "#"))
	if name == "" {
		return nil
	}
	return s.send(ctx, ev, name, false, false)
}

func (s *Service) sendNth(ctx context.Context, ev *router.Event, n int) error {
	list, err := s.store.Notes(ctx, ev.Chat.ID)
	if err != nil {
		return fmt.Errorf("notes: list: %w", err)
	}
	if n < 1 || n > len(list) {
		_, err := ev.Reply(ctx, msgBadNoteID, "")
		return err
	}
	return s.send(ctx, ev, list[n-1].Name, false, false)
}

// send delivers the note called name. showMissing controls whether a
// missing note is reported.
func (s *Service) send(ctx context.Context, ev *router.Event, name string, showMissing, noformat bool) error {
	note, err := s.store.Note(ctx, ev.Chat.ID, name)
	if errors.Is(err, settings.ErrNotFound) {
		if !showMissing {
			return nil
		}
		_, err := ev.Reply(ctx, msgNoSuchNote, "")
		return err
	}
	if err != nil {
		return fmt.Errorf("notes: load %q: %w", name, err)
	}

	replyTo := ev.Message.MessageID
	if r := ev.Message.ReplyToMessage; r != nil {
		replyTo = r.MessageID
	}

	text := note.Text
	parseMode := botapi.ParseModeMarkdown
	var keyboard *botapi.InlineKeyboardMarkup
	if noformat {
		parseMode = ""
		text += markup.RevertButtons(note.Buttons)
	} else {
		text = markup.Fill(markup.PickRandom(text), markup.NoteFields, fields(ev))
		keyboard = markup.Keyboard(note.Buttons)
	}

	if note.Type.IsMedia() {
		_, err = s.bot.SendMedia(ctx, botapi.MediaRequest{
			Kind:             note.Type.MediaKind(),
			ChatID:           ev.Chat.ID,
			FileID:           note.FileID,
			Caption:          text,
			ParseMode:        parseMode,
			ReplyToMessageID: replyTo,
			ReplyMarkup:      keyboard,
		})
	} else {
		_, err = s.bot.SendMessage(ctx, botapi.SendMessageRequest{
			ChatID:                   ev.Chat.ID,
			Text:                     text,
			ParseMode:                parseMode,
			ReplyToMessageID:         replyTo,
			AllowSendingWithoutReply: true,
			DisableWebPagePreview:    true,
			ReplyMarkup:              keyboard,
		})
	}
	if err == nil {
		return nil
	}

	ev.Logger.Warn("notes: sending note failed", "note", name, "error", err)
	reply := msgBadFormat
	if strings.Contains(strings.ToLower(err.Error()), "entity_mention_user_invalid") {
		reply = msgUnknownMention
	}
	_, rerr := ev.Reply(ctx, reply, "")
	return rerr
}

// fields computes the placeholder values for the sender of ev.
func fields(ev *router.Event) map[string]string {
	u := ev.From
	if u == nil {
		return nil
	}
	first := u.FirstName
	last := u.LastName
	if last == "" {
		last = first
	}
	mention := markup.MentionMarkdown(u.ID, first)
	username := mention
	if u.Username != "" {
		username = "@" + markup.EscapeMarkdown(u.Username)
	}
	chatName := ev.Chat.Title
	if ev.Chat.IsPrivate() {
		chatName = first
	}
	return map[string]string{
		markup.First:    markup.EscapeMarkdown(first),
		markup.Last:     markup.EscapeMarkdown(last),
		markup.FullName: markup.EscapeMarkdown(u.FullName()),
		markup.Username: username,
		markup.Mention:  mention,
		markup.ID:       strconv.FormatInt(u.ID, 10),
		markup.ChatName: markup.EscapeMarkdown(chatName),
	}
}

func (s *Service) cmdSave(ctx context.Context, ev *router.Event) error {
	if len(ev.Args) == 0 {
		_, err := ev.Reply(ctx, msgNothingToSave, "")
		return err
	}
	name := strings.ToLower(ev.Args[0])
	c, ok := settings.ExtractContent(ev.Message, afterFirstWord(ev.RawArgs))
	if !ok {
		_, err := ev.Reply(ctx, msgNothingToSave, "")
		return err
	}
	if err := s.store.SaveNote(ctx, settings.Note{
		ChatID:  ev.Chat.ID,
		Name:    name,
		Type:    c.Type,
		Text:    c.Text,
		FileID:  c.FileID,
		Buttons: c.Buttons,
	}); err != nil {
		return fmt.Errorf("notes: save %q: %w", name, err)
	}
	if _, err := ev.Reply(ctx, fmt.Sprintf(msgSaved, name, name, name), botapi.ParseModeMarkdown); err != nil {
		return err
	}

	if r := ev.Message.ReplyToMessage; r != nil && r.From != nil && r.From.IsBot {
		warn := msgFromBotMedia
		if c.Text != "" {
			warn = msgFromBotText
		}
		_, err := ev.Reply(ctx, warn, "")
		return err
	}
	return nil
}

// afterFirstWord drops the note name from the command arguments, keeping
// the line breaks of the body.
func afterFirstWord(raw string) string {
	raw = strings.TrimLeftFunc(raw, unicode.IsSpace)
	i := strings.IndexFunc(raw, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(raw[i:])
}

func (s *Service) cmdClear(ctx context.Context, ev *router.Event) error {
	if len(ev.Args) == 0 {
		return nil
	}
	removed, err := s.store.DeleteNote(ctx, ev.Chat.ID, strings.ToLower(ev.Args[0]))
	if err != nil {
		return fmt.Errorf("notes: clear: %w", err)
	}
	text := msgNotANote
	if removed {
		text = msgCleared
	}
	_, err = ev.Reply(ctx, text, "")
	return err
}

func (s *Service) cmdList(ctx context.Context, ev *router.Event) error {
	list, err := s.store.Notes(ctx, ev.Chat.ID)
	if err != nil {
		return fmt.Errorf("notes: list: %w", err)
	}
	if len(list) == 0 {
		_, err := ev.Reply(ctx, msgNoNotes, "")
		return err
	}

	var b strings.Builder
	b.WriteString(msgListHeader)
	for i, n := range list {
		format := listLine
		if i+1 < 10 {
			format = listLineShort
		}
		fmt.Fprintf(&b, format, i+1, n.Name)
	}
	for _, chunk := range markup.Split(b.String(), markup.MaxMessageLength) {
		if _, err := ev.Reply(ctx, chunk, botapi.ParseModeMarkdown); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) cmdClearAll(ctx context.Context, ev *router.Event) error {
	_, err := s.bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:                   ev.Chat.ID,
		Text:                     fmt.Sprintf(msgConfirmClear, markup.EscapeMarkdown(ev.Chat.Title)),
		ParseMode:                botapi.ParseModeMarkdown,
		ReplyToMessageID:         ev.Message.MessageID,
		AllowSendingWithoutReply: true,
		ReplyMarkup: &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{
			{{Text: msgButtonClearAll, CallbackData: callbackRemove}},
			{{Text: msgButtonCancel, CallbackData: callbackCancel}},
		}},
	})
	return err
}

// onClearAllButton confirms or cancels /removeallnotes. Only the chat
// creator or a sudo user may press it.
func (s *Service) onClearAllButton(ctx context.Context, ev *router.Event) error {
	if ev.From == nil {
		return nil
	}
	data := ev.Callback.Data
	if data != callbackRemove && data != callbackCancel {
		return ev.Answer(ctx, "", false)
	}

	allowed := s.oracle.RoleAtLeast(ctx, ev.Chat, ev.From.ID, role.SudoOwner)
	var status string
	if !allowed {
		m, err := s.oracle.Member(ctx, ev.Chat.ID, ev.From.ID)
		if err != nil {
			return fmt.Errorf("notes: member lookup: %w", err)
		}
		status = m.Status
		allowed = status == botapi.StatusCreator
	}
	if !allowed {
		text := msgAdminFirst
		if status == botapi.StatusAdministrator {
			text = msgOnlyOwnerBtn
		}
		return ev.Answer(ctx, text, false)
	}

	text := msgClearCancelled
	if data == callbackRemove {
		n, err := s.store.DeleteAllNotes(ctx, ev.Chat.ID)
		if err != nil {
			return fmt.Errorf("notes: clear all: %w", err)
		}
		s.audit.Log(security.AuditEvent{
			Type:     security.EventNotesCleared,
			ChatID:   ev.Chat.ID,
			ActorID:  ev.From.ID,
			Metadata: map[string]string{"count": strconv.Itoa(n)},
		})
		text = msgAllCleared
	}
	if ev.Message != nil {
		if _, err := s.bot.EditMessageText(ctx, botapi.EditMessageTextRequest{
			ChatID:    ev.Chat.ID,
			MessageID: ev.Message.MessageID,
			Text:      text,
		}); err != nil && !botapi.IsNotFound(err) {
			return fmt.Errorf("notes: edit confirmation: %w", err)
		}
	}
	return ev.Answer(ctx, "", false)
}
