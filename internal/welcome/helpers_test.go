package welcome

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/gatekeep/internal/cron/crontest"
	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/internal/router"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/security/securitytest"
	"github.com/flemzord/gatekeep/internal/settings"
	"github.com/flemzord/gatekeep/internal/waitlist"
	"github.com/flemzord/gatekeep/pkg/botapi"
	"github.com/flemzord/gatekeep/pkg/botapi/botapitest"
)

const (
	chatID    int64 = -100
	botID     int64 = 999
	ownerID   int64 = 1
	devID     int64 = 2
	sudoID    int64 = 3
	supportID int64 = 4
	tigerID   int64 = 5
	wolfID    int64 = 6
	adminID   int64 = 10
	joinMsgID       = 50
)

var (
	testChat = botapi.Chat{ID: chatID, Type: botapi.ChatSupergroup, Title: "Gophers"}
	testNow  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type staticBans map[int64]bool

func (b staticBans) IsGloballyBanned(_ context.Context, id int64) bool { return b[id] }

type harness struct {
	p      *Pipeline
	fake   *botapitest.Fake
	store  *settings.MemoryStore
	wl     *waitlist.Waitlist
	sched  *crontest.ManualScheduler
	events func() []security.AuditEvent
	oracle *role.Oracle
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := botapitest.New()
	fake.SetAdmins(chatID, adminID)
	cache, err := role.NewAdminCache(role.CacheConfig{TTL: time.Minute, Logger: logger}, role.AdminFetcher(fake))
	if err != nil {
		t.Fatal(err)
	}
	roster := role.NewRoster(role.RosterConfig{
		OwnerID:    ownerID,
		Developers: []int64{devID},
		Sudo:       []int64{sudoID},
		Support:    []int64{supportID},
		Tigers:     []int64{tigerID},
		Wolves:     []int64{wolfID},
	})
	oracle := role.NewOracle(roster, cache, fake, logger)
	audit, events := securitytest.NewTestAuditLogger()

	h := &harness{
		fake:   fake,
		store:  settings.NewMemoryStore(),
		wl:     waitlist.New(),
		sched:  crontest.NewManualScheduler(),
		events: events,
		oracle: oracle,
	}
	cfg := Config{
		Bot:       fake,
		Store:     h.store,
		Oracle:    oracle,
		Waitlist:  h.wl,
		Scheduler: h.sched,
		Self:      router.Identity{ID: botID, Username: "gatekeep_bot"},
		Audit:     audit,
		Logger:    logger,
		Now:       func() time.Time { return testNow },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.p = p
	return h
}

func (h *harness) setPolicy(t *testing.T, p settings.MutePolicy) {
	t.Helper()
	if err := h.store.SetMutePolicy(context.Background(), chatID, p); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) setWelcome(t *testing.T, text string) {
	t.Helper()
	if err := h.store.SetWelcome(context.Background(), chatID, settings.Greeting{Enabled: true, Type: settings.TypeText, Text: text}); err != nil {
		t.Fatal(err)
	}
}

func user(id int64, first string) botapi.User {
	return botapi.User{ID: id, FirstName: first}
}

func joinEventFor(fake *botapitest.Fake, members ...botapi.User) *router.Event {
	from := members[0]
	msg := &botapi.Message{MessageID: joinMsgID, Chat: testChat, From: &from, NewChatMembers: members}
	return &router.Event{ID: "join", Kind: router.KindJoin, Message: msg, Chat: testChat, From: &from, Bot: fake}
}

func leaveEventFor(fake *botapitest.Fake, left botapi.User) *router.Event {
	msg := &botapi.Message{MessageID: joinMsgID, Chat: testChat, From: &left, LeftChatMember: &left}
	return &router.Event{ID: "leave", Kind: router.KindLeave, Message: msg, Chat: testChat, From: &left, Bot: fake}
}

func pressEvent(fake *botapitest.Fake, presser int64, target int64, challengeID int) *router.Event {
	from := botapi.User{ID: presser}
	msg := &botapi.Message{MessageID: challengeID, Chat: testChat}
	cb := &botapi.CallbackQuery{ID: "cb", From: from, Message: msg, Data: VerifyPrefix + itoa(target)}
	return &router.Event{ID: "press", Kind: router.KindCallback, Callback: cb, Message: msg, Chat: testChat, From: &from, Bot: fake}
}

func commandEvent(fake *botapitest.Fake, from int64, text string) *router.Event {
	u := &botapi.User{ID: from}
	msg := &botapi.Message{MessageID: 70, Chat: testChat, From: u, Text: text}
	word, rest, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	return &router.Event{
		ID: "cmd", Kind: router.KindCommand, Message: msg, Chat: testChat, From: u, Bot: fake,
		Command: word, RawArgs: strings.TrimSpace(rest), Args: strings.Fields(rest),
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
