package welcome

import (
	"context"
	"fmt"

	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/internal/router"
)

// OnMemberLeft handles a left_chat_member service message.
func (p *Pipeline) OnMemberLeft(ctx context.Context, ev *router.Event) error {
	msg := ev.Message
	if msg == nil || msg.LeftChatMember == nil {
		return nil
	}
	left := *msg.LeftChatMember
	if left.ID == p.self.ID || p.isBanned(ctx, left.ID) {
		return nil
	}

	g, err := p.store.Goodbye(ctx, ev.Chat.ID)
	if err != nil {
		return fmt.Errorf("welcome: load goodbye: %w", err)
	}
	if !g.Enabled {
		return nil
	}

	je := &joinEvent{chat: ev.Chat, replyTo: msg.MessageID, logger: p.eventLogger(ev)}
	if p.cleanService(ctx, ev.Chat.ID, msg.MessageID) {
		je.replyTo = 0
	}

	roster := p.oracle.Roster()
	switch {
	case roster.IsOwner(left.ID):
		p.reply(ctx, je, msgOwnerLeft)
		return nil
	case roster.Tier(left.ID) == role.Developer:
		p.reply(ctx, je, msgDeveloperLeft)
		return nil
	}

	pl := p.resolve(ctx, ev.Chat, left, g, defaultGoodbyes)
	pl.ReplyTo = je.replyTo
	if _, err := p.send(ctx, pl); err != nil {
		return fmt.Errorf("welcome: goodbye: %w", err)
	}
	return nil
}

