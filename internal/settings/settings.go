// Package settings defines the persisted per-chat configuration of the bot
// and an in-memory Store implementation.
package settings

import (
	"context"
	"errors"

	"github.com/flemzord/gatekeep/internal/markup"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// ErrNotFound is returned when a named record does not exist.
var ErrNotFound = errors.New("settings: not found")

// ContentType tags the kind of content a template sends.
type ContentType int

// Content types. Values are persisted; do not reorder.
const (
	TypeText ContentType = iota
	TypeButtonText
	TypeSticker
	TypeDocument
	TypePhoto
	TypeAudio
	TypeVoice
	TypeVideo
)

// IsMedia reports whether the content is a file rather than text.
func (t ContentType) IsMedia() bool {
	return t >= TypeSticker && t <= TypeVideo
}

// MediaKind maps a media content type to the send method kind.
func (t ContentType) MediaKind() botapi.MediaKind {
	switch t {
	case TypeSticker:
		return botapi.MediaSticker
	case TypeDocument:
		return botapi.MediaDocument
	case TypePhoto:
		return botapi.MediaPhoto
	case TypeAudio:
		return botapi.MediaAudio
	case TypeVoice:
		return botapi.MediaVoice
	case TypeVideo:
		return botapi.MediaVideo
	default:
		return ""
	}
}

// String returns a short name for the content type.
func (t ContentType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeButtonText:
		return "button_text"
	default:
		return string(t.MediaKind())
	}
}

// MutePolicy is the welcome-mute mode of a chat.
type MutePolicy string

// Welcome-mute policies.
const (
	MuteOff    MutePolicy = "off"
	MuteSoft   MutePolicy = "soft"
	MuteStrong MutePolicy = "strong"
)

// ParseMutePolicy validates a policy name.
func ParseMutePolicy(s string) (MutePolicy, bool) {
	switch p := MutePolicy(s); p {
	case MuteOff, MuteSoft, MuteStrong:
		return p, true
	default:
		return "", false
	}
}

// Greeting is a welcome or goodbye preference. An empty Text on a text type
// means the built-in default greeting is used.
type Greeting struct {
	Enabled bool
	Type    ContentType
	Text    string
	FileID  string
	Buttons []markup.Button
}

// CleanWelcome tracks the messages removed when the next welcome is sent.
type CleanWelcome struct {
	Enabled       bool
	LastWelcomeID int
	LastJoinID    int
}

// Note is a saved piece of content retrievable by name.
type Note struct {
	ChatID  int64
	Name    string
	Type    ContentType
	Text    string
	FileID  string
	Buttons []markup.Button
}

// GlobalBan is a locally recorded global ban.
type GlobalBan struct {
	UserID int64
	Reason string
}

// Store persists per-chat settings, notes and global bans.
type Store interface {
	Welcome(ctx context.Context, chatID int64) (Greeting, error)
	SetWelcomeEnabled(ctx context.Context, chatID int64, enabled bool) error
	SetWelcome(ctx context.Context, chatID int64, g Greeting) error
	ResetWelcome(ctx context.Context, chatID int64) error

	Goodbye(ctx context.Context, chatID int64) (Greeting, error)
	SetGoodbyeEnabled(ctx context.Context, chatID int64, enabled bool) error
	SetGoodbye(ctx context.Context, chatID int64, g Greeting) error
	ResetGoodbye(ctx context.Context, chatID int64) error

	MutePolicy(ctx context.Context, chatID int64) (MutePolicy, error)
	SetMutePolicy(ctx context.Context, chatID int64, p MutePolicy) error

	HumanCheckPassed(ctx context.Context, userID, chatID int64) (bool, error)
	SetHumanCheckPassed(ctx context.Context, userID, chatID int64) error

	CleanService(ctx context.Context, chatID int64) (bool, error)
	SetCleanService(ctx context.Context, chatID int64, enabled bool) error

	CleanWelcome(ctx context.Context, chatID int64) (CleanWelcome, error)
	SetCleanWelcomeEnabled(ctx context.Context, chatID int64, enabled bool) error
	SetCleanWelcomeMessages(ctx context.Context, chatID int64, welcomeID, joinID int) error

	Note(ctx context.Context, chatID int64, name string) (Note, error)
	SaveNote(ctx context.Context, n Note) error
	DeleteNote(ctx context.Context, chatID int64, name string) (bool, error)
	Notes(ctx context.Context, chatID int64) ([]Note, error)
	DeleteAllNotes(ctx context.Context, chatID int64) (int, error)

	GlobalBan(ctx context.Context, userID int64) (GlobalBan, bool, error)
	AddGlobalBan(ctx context.Context, ban GlobalBan) error
	RemoveGlobalBan(ctx context.Context, userID int64) error
}

// Defaults applied to chats with no stored preference.
var (
	DefaultWelcome = Greeting{Enabled: true, Type: TypeText}
	DefaultGoodbye = Greeting{Enabled: true, Type: TypeText}
)

// DefaultMutePolicy applies to chats that never configured one.
const DefaultMutePolicy = MuteOff
