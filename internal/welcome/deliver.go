package welcome

import (
	"context"
	"fmt"

	"github.com/flemzord/gatekeep/internal/metrics"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// deliver sends a welcome and runs the clean-welcome cycle around it: the
// previous welcome and join message are deleted first, then the new ids
// are recorded.
func (p *Pipeline) deliver(ctx context.Context, pl Payload) (*botapi.Message, error) {
	cw, err := p.store.CleanWelcome(ctx, pl.ChatID)
	if err != nil {
		p.logger.Warn("welcome: clean-welcome lookup failed", "chat_id", pl.ChatID, "error", err)
	}
	if cw.Enabled {
		p.deleteQuietly(ctx, pl.ChatID, cw.LastWelcomeID)
		p.deleteQuietly(ctx, pl.ChatID, cw.LastJoinID)
	}

	sent, err := p.send(ctx, pl)
	if err != nil {
		return nil, err
	}

	if cw.Enabled && sent != nil {
		if err := p.store.SetCleanWelcomeMessages(ctx, pl.ChatID, sent.MessageID, pl.JoinMessageID); err != nil {
			p.logger.Warn("welcome: recording welcome message failed", "chat_id", pl.ChatID, "error", err)
		}
	}
	return sent, nil
}

// send posts pl and falls back to its built-in text when the configured
// content is rejected. A nil message with a nil error means the bot may not
// post in the chat at all.
func (p *Pipeline) send(ctx context.Context, pl Payload) (*botapi.Message, error) {
	sent, err := p.post(ctx, pl)
	if err == nil {
		return sent, nil
	}

	kind := botapi.Classify(err)
	var note string
	switch kind {
	case botapi.KindNoRights:
		metrics.DeliveryFallbacks.WithLabelValues(kind.String()).Inc()
		p.logger.Debug("welcome: no rights to post", "chat_id", pl.ChatID)
		return nil, nil
	case botapi.KindReplyNotFound:
		if pl.ReplyTo != 0 {
			metrics.DeliveryFallbacks.WithLabelValues(kind.String()).Inc()
			pl.ReplyTo = 0
			return p.send(ctx, pl)
		}
		note = noteSendFailed
	case botapi.KindButtonURLInvalid:
		note = noteButtonURLInvalid
	case botapi.KindUnsupportedURLProtocol:
		note = noteUnsupportedURL
	case botapi.KindWrongURLHost:
		note = noteWrongURLHost
		p.logger.Warn("welcome: greeting has a bad url host", "chat_id", pl.ChatID, "text", pl.Text)
	default:
		note = noteSendFailed
		p.logger.Error("welcome: sending greeting failed", "chat_id", pl.ChatID, "error", err)
	}
	metrics.DeliveryFallbacks.WithLabelValues(kind.String()).Inc()

	fallback, ferr := p.bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:                   pl.ChatID,
		Text:                     pl.Backup + note,
		ParseMode:                botapi.ParseModeMarkdown,
		ReplyToMessageID:         pl.ReplyTo,
		AllowSendingWithoutReply: true,
	})
	if ferr != nil {
		return nil, fmt.Errorf("welcome: fallback after %s: %w", kind, ferr)
	}
	return fallback, nil
}

// post sends pl as configured.
func (p *Pipeline) post(ctx context.Context, pl Payload) (*botapi.Message, error) {
	if pl.Type.IsMedia() {
		return p.bot.SendMedia(ctx, botapi.MediaRequest{
			Kind:             pl.Type.MediaKind(),
			ChatID:           pl.ChatID,
			FileID:           pl.FileID,
			Caption:          pl.Text,
			ParseMode:        botapi.ParseModeMarkdown,
			ReplyToMessageID: pl.ReplyTo,
			ReplyMarkup:      pl.Keyboard,
		})
	}
	return p.bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:                   pl.ChatID,
		Text:                     pl.Text,
		ParseMode:                botapi.ParseModeMarkdown,
		ReplyToMessageID:         pl.ReplyTo,
		AllowSendingWithoutReply: true,
		ReplyMarkup:              pl.Keyboard,
	})
}

// deleteQuietly deletes a message, ignoring messages that are already gone.
func (p *Pipeline) deleteQuietly(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := p.bot.DeleteMessage(ctx, chatID, messageID); err != nil && !botapi.IsNotFound(err) {
		p.logger.Debug("welcome: delete failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}
