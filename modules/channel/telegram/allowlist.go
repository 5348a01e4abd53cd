package telegram

import (
	"sync/atomic"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

// allowList filters updates by chat. It can be swapped at runtime on
// config reload.
type allowList struct {
	chats atomic.Pointer[map[int64]struct{}]
}

func newAllowList(ids []int64) *allowList {
	a := &allowList{}
	a.set(ids)
	return a
}

func (a *allowList) set(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	a.chats.Store(&m)
}

// allowed reports whether u should reach the sink. Updates without a
// chat (inline queries and the like) are never allowed since nothing
// handles them.
func (a *allowList) allowed(u botapi.Update) bool {
	chat, ok := updateChat(u)
	if !ok {
		return false
	}
	if chat.IsPrivate() {
		return true
	}
	m := *a.chats.Load()
	if len(m) == 0 {
		return true
	}
	_, ok = m[chat.ID]
	return ok
}

func updateChat(u botapi.Update) (botapi.Chat, bool) {
	switch {
	case u.Message != nil:
		return u.Message.Chat, true
	case u.EditedMessage != nil:
		return u.EditedMessage.Chat, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat, true
	case u.CallbackQuery != nil:
		// Callbacks on inline messages carry no chat; let the router decide.
		return botapi.Chat{Type: botapi.ChatPrivate}, true
	}
	return botapi.Chat{}, false
}
