package botapi

import (
	"fmt"
	"time"
)

// Parse modes accepted by the send methods.
const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

// GetUpdatesRequest is the request body for the getUpdates method.
type GetUpdatesRequest struct {
	Offset         int      `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// SetWebhookRequest is the request body for the setWebhook method.
type SetWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
	MaxConnections int      `json:"max_connections,omitempty"`
}

// SendMessageRequest is the request body for the sendMessage method.
type SendMessageRequest struct {
	ChatID                   int64                 `json:"chat_id"`
	Text                     string                `json:"text"`
	ParseMode                string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview    bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyToMessageID         int                   `json:"reply_to_message_id,omitempty"`
	AllowSendingWithoutReply bool                  `json:"allow_sending_without_reply,omitempty"`
	ReplyMarkup              *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// EditMessageTextRequest is the request body for the editMessageText method.
type EditMessageTextRequest struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int                   `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// MediaKind selects the send method used for a file id.
type MediaKind string

// Media kinds supported by SendMedia.
const (
	MediaSticker  MediaKind = "sticker"
	MediaDocument MediaKind = "document"
	MediaPhoto    MediaKind = "photo"
	MediaAudio    MediaKind = "audio"
	MediaVoice    MediaKind = "voice"
	MediaVideo    MediaKind = "video"
)

func (k MediaKind) method() (method, field string, err error) {
	switch k {
	case MediaSticker:
		return "sendSticker", "sticker", nil
	case MediaDocument:
		return "sendDocument", "document", nil
	case MediaPhoto:
		return "sendPhoto", "photo", nil
	case MediaAudio:
		return "sendAudio", "audio", nil
	case MediaVoice:
		return "sendVoice", "voice", nil
	case MediaVideo:
		return "sendVideo", "video", nil
	default:
		return "", "", fmt.Errorf("botapi: unsupported media kind %q", string(k))
	}
}

// MediaRequest describes a file re-sent by its file id. Stickers ignore the caption.
type MediaRequest struct {
	Kind             MediaKind
	ChatID           int64
	FileID           string
	Caption          string
	ParseMode        string
	ReplyToMessageID int
	ReplyMarkup      *InlineKeyboardMarkup
}

// RestrictRequest describes a restrictChatMember call.
type RestrictRequest struct {
	ChatID      int64
	UserID      int64
	Permissions ChatPermissions
	Until       time.Time
}

// AnswerCallbackQueryRequest is the request body for the answerCallbackQuery method.
type AnswerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

type restrictChatMemberRequest struct {
	ChatID                        int64           `json:"chat_id"`
	UserID                        int64           `json:"user_id"`
	Permissions                   ChatPermissions `json:"permissions"`
	UseIndependentChatPermissions bool            `json:"use_independent_chat_permissions"`
	UntilDate                     int64           `json:"until_date,omitempty"`
}

type messageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

type memberRef struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

type chatRef struct {
	ChatID int64 `json:"chat_id"`
}
