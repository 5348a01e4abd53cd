// Package botapitest provides an in-memory stand-in for the Bot API client.
package botapitest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

// Sent records one outbound message or media send.
type Sent struct {
	ChatID      int64
	MessageID   int
	Text        string
	Media       botapi.MediaKind
	FileID      string
	ParseMode   string
	ReplyTo     int
	ReplyMarkup *botapi.InlineKeyboardMarkup
}

// MemberRef identifies a user in a chat.
type MemberRef struct {
	ChatID int64
	UserID int64
}

// MessageRef identifies a message in a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Fake records every call and answers membership queries from its tables.
// Errors queued with FailNext are returned by the next call of that method.
type Fake struct {
	mu sync.Mutex

	nextID       int
	sent         []Sent
	edits        []botapi.EditMessageTextRequest
	deleted      []MessageRef
	restrictions []botapi.RestrictRequest
	bans         []MemberRef
	unbans       []MemberRef
	answers      []botapi.AnswerCallbackQueryRequest
	adminCalls   int
	failures     map[string][]error

	admins      map[int64][]botapi.ChatMember
	members     map[MemberRef]botapi.ChatMember
	memberCount map[int64]int

	// AdminDelay slows GetChatAdministrators to widen race windows in tests.
	AdminDelay time.Duration
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		nextID:      100,
		failures:    make(map[string][]error),
		admins:      make(map[int64][]botapi.ChatMember),
		members:     make(map[MemberRef]botapi.ChatMember),
		memberCount: make(map[int64]int),
	}
}

// SetAdmins sets the administrator list of a chat.
func (f *Fake) SetAdmins(chatID int64, userIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]botapi.ChatMember, 0, len(userIDs))
	for _, id := range userIDs {
		list = append(list, botapi.ChatMember{Status: botapi.StatusAdministrator, User: botapi.User{ID: id}})
	}
	f.admins[chatID] = list
}

// SetMember sets the status returned by GetChatMember.
func (f *Fake) SetMember(chatID int64, m botapi.ChatMember) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[MemberRef{ChatID: chatID, UserID: m.User.ID}] = m
}

// SetMemberCount sets the value returned by GetChatMemberCount.
func (f *Fake) SetMemberCount(chatID int64, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCount[chatID] = n
}

// FailNext queues err as the result of the next call to method.
func (f *Fake) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

func (f *Fake) failure(method string) error {
	q := f.failures[method]
	if len(q) == 0 {
		return nil
	}
	f.failures[method] = q[1:]
	return q[0]
}

// SendMessage implements the messenger contract.
func (f *Fake) SendMessage(_ context.Context, req botapi.SendMessageRequest) (*botapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("sendMessage"); err != nil {
		return nil, err
	}
	f.nextID++
	f.sent = append(f.sent, Sent{
		ChatID:      req.ChatID,
		MessageID:   f.nextID,
		Text:        req.Text,
		ParseMode:   req.ParseMode,
		ReplyTo:     req.ReplyToMessageID,
		ReplyMarkup: req.ReplyMarkup,
	})
	return &botapi.Message{MessageID: f.nextID, Chat: botapi.Chat{ID: req.ChatID}, Text: req.Text}, nil
}

// SendMedia implements the messenger contract.
func (f *Fake) SendMedia(_ context.Context, req botapi.MediaRequest) (*botapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("sendMedia"); err != nil {
		return nil, err
	}
	f.nextID++
	f.sent = append(f.sent, Sent{
		ChatID:      req.ChatID,
		MessageID:   f.nextID,
		Text:        req.Caption,
		Media:       req.Kind,
		FileID:      req.FileID,
		ParseMode:   req.ParseMode,
		ReplyTo:     req.ReplyToMessageID,
		ReplyMarkup: req.ReplyMarkup,
	})
	return &botapi.Message{MessageID: f.nextID, Chat: botapi.Chat{ID: req.ChatID}, Caption: req.Caption}, nil
}

// EditMessageText implements the messenger contract.
func (f *Fake) EditMessageText(_ context.Context, req botapi.EditMessageTextRequest) (*botapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("editMessageText"); err != nil {
		return nil, err
	}
	f.edits = append(f.edits, req)
	return &botapi.Message{MessageID: req.MessageID, Chat: botapi.Chat{ID: req.ChatID}, Text: req.Text}, nil
}

// DeleteMessage implements the messenger contract.
func (f *Fake) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("deleteMessage"); err != nil {
		return err
	}
	f.deleted = append(f.deleted, MessageRef{ChatID: chatID, MessageID: messageID})
	return nil
}

// RestrictChatMember implements the messenger contract.
func (f *Fake) RestrictChatMember(_ context.Context, req botapi.RestrictRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("restrictChatMember"); err != nil {
		return err
	}
	f.restrictions = append(f.restrictions, req)
	return nil
}

// BanChatMember implements the messenger contract.
func (f *Fake) BanChatMember(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("banChatMember"); err != nil {
		return err
	}
	f.bans = append(f.bans, MemberRef{ChatID: chatID, UserID: userID})
	return nil
}

// UnbanChatMember implements the messenger contract.
func (f *Fake) UnbanChatMember(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("unbanChatMember"); err != nil {
		return err
	}
	f.unbans = append(f.unbans, MemberRef{ChatID: chatID, UserID: userID})
	return nil
}

// GetChatAdministrators implements the member lookup contract.
func (f *Fake) GetChatAdministrators(_ context.Context, chatID int64) ([]botapi.ChatMember, error) {
	if f.AdminDelay > 0 {
		time.Sleep(f.AdminDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminCalls++
	if err := f.failure("getChatAdministrators"); err != nil {
		return nil, err
	}
	return append([]botapi.ChatMember(nil), f.admins[chatID]...), nil
}

// GetChatMember implements the member lookup contract. Unknown users are
// reported as plain members.
func (f *Fake) GetChatMember(_ context.Context, chatID, userID int64) (*botapi.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("getChatMember"); err != nil {
		return nil, err
	}
	m, ok := f.members[MemberRef{ChatID: chatID, UserID: userID}]
	if !ok {
		for _, a := range f.admins[chatID] {
			if a.User.ID == userID {
				return &a, nil
			}
		}
		m = botapi.ChatMember{Status: botapi.StatusMember, User: botapi.User{ID: userID}}
	}
	return &m, nil
}

// GetChatMemberCount implements the messenger contract.
func (f *Fake) GetChatMemberCount(_ context.Context, chatID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("getChatMemberCount"); err != nil {
		return 0, err
	}
	return f.memberCount[chatID], nil
}

// AnswerCallbackQuery implements the messenger contract.
func (f *Fake) AnswerCallbackQuery(_ context.Context, req botapi.AnswerCallbackQueryRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, req)
	return nil
}

// Sent returns a copy of all recorded sends.
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Edits returns a copy of all recorded message edits.
func (f *Fake) Edits() []botapi.EditMessageTextRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]botapi.EditMessageTextRequest(nil), f.edits...)
}

// Deleted returns a copy of all recorded deletions.
func (f *Fake) Deleted() []MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MessageRef(nil), f.deleted...)
}

// Restrictions returns a copy of all recorded restrictions.
func (f *Fake) Restrictions() []botapi.RestrictRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]botapi.RestrictRequest(nil), f.restrictions...)
}

// Bans returns a copy of all recorded bans.
func (f *Fake) Bans() []MemberRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MemberRef(nil), f.bans...)
}

// Unbans returns a copy of all recorded unbans.
func (f *Fake) Unbans() []MemberRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MemberRef(nil), f.unbans...)
}

// Answers returns a copy of all recorded callback answers.
func (f *Fake) Answers() []botapi.AnswerCallbackQueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]botapi.AnswerCallbackQueryRequest(nil), f.answers...)
}

// AdminCalls returns how many times GetChatAdministrators was called.
func (f *Fake) AdminCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adminCalls
}
