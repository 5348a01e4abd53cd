package welcome

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/gatekeep/internal/markup"
	"github.com/flemzord/gatekeep/internal/metrics"
	"github.com/flemzord/gatekeep/internal/router"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/waitlist"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// challenge fully restricts member, records it on the waitlist, posts the
// verification button and schedules the expiry. Any failure after the
// restriction rolls back so the member is never left muted for good.
func (p *Pipeline) challenge(ctx context.Context, je *joinEvent, member botapi.User, pl Payload) error {
	key := waitlist.Key{UserID: member.ID, ChatID: je.chat.ID}

	if err := p.bot.RestrictChatMember(ctx, botapi.RestrictRequest{
		ChatID:      je.chat.ID,
		UserID:      member.ID,
		Permissions: botapi.NoPermissions(),
		Until:       p.now().Add(p.verifyTimeout + strongMuteGrace),
	}); err != nil {
		return fmt.Errorf("restrict: %w", err)
	}

	replaced := p.waitlist.Add(waitlist.Entry{
		Key:           key,
		ShouldWelcome: je.greeting.Enabled,
		MediaWelcome:  pl.Type.IsMedia(),
		Payload:       pl,
	})
	if replaced != nil {
		p.deleteQuietly(ctx, je.chat.ID, replaced.ChallengeMessageID)
	}

	name := member.FirstName
	if name == "" {
		name = noName
	}
	sent, err := p.bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:                   je.chat.ID,
		Text:                     fmt.Sprintf(msgChallenge, markup.MentionHTML(member.ID, name), int(p.verifyTimeout.Seconds())),
		ParseMode:                botapi.ParseModeHTML,
		ReplyToMessageID:         je.replyTo,
		AllowSendingWithoutReply: true,
		ReplyMarkup: &botapi.InlineKeyboardMarkup{InlineKeyboard: [][]botapi.InlineKeyboardButton{{
			{Text: msgChallengeBtn, CallbackData: VerifyPrefix + strconv.FormatInt(member.ID, 10)},
		}}},
	})
	if err != nil {
		p.waitlist.Remove(key)
		p.unmute(ctx, je.chat.ID, member.ID)
		return fmt.Errorf("send challenge: %w", err)
	}

	messageID := sent.MessageID
	cancel := p.scheduler.ScheduleOnce(expiryJobName(key), p.verifyTimeout, func(ctx context.Context) {
		p.OnVerificationExpired(ctx, key, messageID)
	})
	if !p.waitlist.SetChallenge(key, messageID, cancel) {
		return errors.New("waitlist entry vanished before the challenge was recorded")
	}
	return nil
}

// OnVerifyButton handles a press on the verification button. Only the
// member the button targets may press it; the first of verification and
// expiry to reach the waitlist wins.
func (p *Pipeline) OnVerifyButton(ctx context.Context, ev *router.Event) error {
	if ev.Callback == nil || ev.From == nil {
		return nil
	}
	target, err := strconv.ParseInt(strings.TrimPrefix(ev.Callback.Data, VerifyPrefix), 10, 64)
	if err != nil {
		return ev.Answer(ctx, "", false)
	}
	if target != ev.From.ID {
		metrics.VerificationsTotal.WithLabelValues("rejected").Inc()
		return ev.Answer(ctx, msgNotYourButton, false)
	}

	key := waitlist.Key{UserID: target, ChatID: ev.Chat.ID}
	entry, ok := p.waitlist.Verify(key)
	if !ok {
		metrics.VerificationsTotal.WithLabelValues("stale").Inc()
		return ev.Answer(ctx, msgVerifyExpired, false)
	}
	metrics.VerificationsTotal.WithLabelValues("passed").Inc()
	logger := p.eventLogger(ev)

	if err := p.store.SetHumanCheckPassed(ctx, target, ev.Chat.ID); err != nil {
		logger.Warn("welcome: recording human check failed", "user_id", target, "error", err)
	}
	if err := ev.Answer(ctx, msgVerified, false); err != nil {
		logger.Debug("welcome: answering verification failed", "error", err)
	}
	p.unmute(ctx, ev.Chat.ID, target)

	p.deleteQuietly(ctx, ev.Chat.ID, entry.ChallengeMessageID)
	if ev.Message != nil && ev.Message.MessageID != entry.ChallengeMessageID {
		p.deleteQuietly(ctx, ev.Chat.ID, ev.Message.MessageID)
	}

	p.audit.Log(security.AuditEvent{
		Type:     security.EventVerifyPassed,
		ChatID:   ev.Chat.ID,
		TargetID: target,
	})

	if !entry.ShouldWelcome {
		return nil
	}
	pl, ok := entry.Payload.(Payload)
	if !ok {
		return nil
	}
	if _, err := p.deliver(ctx, pl); err != nil {
		return fmt.Errorf("welcome: deferred delivery: %w", err)
	}
	return nil
}

// OnVerificationExpired kicks a member who did not verify in time. It is a
// no-op when the entry was already verified or replaced by a newer
// challenge.
func (p *Pipeline) OnVerificationExpired(ctx context.Context, key waitlist.Key, messageID int) {
	p.expire(ctx, key, messageID)
}

func (p *Pipeline) expire(ctx context.Context, key waitlist.Key, messageID int) bool {
	entry, ok := p.waitlist.Expire(key, messageID)
	if !ok {
		return false
	}
	metrics.VerificationsTotal.WithLabelValues("expired").Inc()
	logger := p.logger.With("chat_id", key.ChatID, "user_id", key.UserID)

	// Unbanning a current member removes them while letting them rejoin.
	if err := p.bot.UnbanChatMember(ctx, key.ChatID, key.UserID); err != nil {
		logger.Warn("welcome: kicking unverified member failed, lifting the restriction", "error", err)
		p.unmute(ctx, key.ChatID, key.UserID)
		p.deleteQuietly(ctx, key.ChatID, entry.ChallengeMessageID)
		p.audit.Log(security.AuditEvent{
			Type:     security.EventVerifyExpired,
			ChatID:   key.ChatID,
			TargetID: key.UserID,
			Detail:   "kick failed, restriction lifted",
		})
		return true
	}
	if entry.ChallengeMessageID != 0 {
		if _, err := p.bot.EditMessageText(ctx, botapi.EditMessageTextRequest{
			ChatID:    key.ChatID,
			MessageID: entry.ChallengeMessageID,
			Text:      msgKickedNotice,
		}); err != nil && !botapi.IsNotFound(err) {
			logger.Debug("welcome: editing challenge failed", "error", err)
		}
	}

	p.audit.Log(security.AuditEvent{
		Type:     security.EventVerifyExpired,
		ChatID:   key.ChatID,
		TargetID: key.UserID,
	})
	logger.Info("welcome: unverified member removed")
	return true
}

// ExpireStale expires waitlist entries older than olderThan through the
// normal expiry path. It catches challenges whose timer was lost.
func (p *Pipeline) ExpireStale(ctx context.Context, olderThan time.Duration) int {
	n := 0
	for _, e := range p.waitlist.Stale(p.now().Add(-olderThan)) {
		if p.expire(ctx, e.Key, e.ChallengeMessageID) {
			n++
		}
	}
	return n
}

// unmute restores full permissions.
func (p *Pipeline) unmute(ctx context.Context, chatID, userID int64) {
	if err := p.bot.RestrictChatMember(ctx, botapi.RestrictRequest{
		ChatID:      chatID,
		UserID:      userID,
		Permissions: botapi.FullPermissions(),
	}); err != nil {
		p.logger.Warn("welcome: restoring permissions failed", "chat_id", chatID, "user_id", userID, "error", err)
	}
}

func expiryJobName(k waitlist.Key) string {
	return fmt.Sprintf("verify:%d:%d", k.ChatID, k.UserID)
}
