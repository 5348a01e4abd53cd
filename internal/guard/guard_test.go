package guard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/pkg/botapi"
	"github.com/flemzord/gatekeep/pkg/botapi/botapitest"
)

const (
	groupID = -1001
	botID   = 999
	adminID = 10
	userID  = 20
	sudoID  = 30
)

var group = botapi.Chat{ID: groupID, Type: botapi.ChatSupergroup, Title: "Group"}

func newChecks(t *testing.T, deleteCommands bool) (*Checks, *botapitest.Fake) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := botapitest.New()
	cache, err := role.NewAdminCache(role.CacheConfig{TTL: time.Minute, Logger: logger}, role.AdminFetcher(fake))
	if err != nil {
		t.Fatal(err)
	}
	roster := role.NewRoster(role.RosterConfig{Sudo: []int64{sudoID}})
	return &Checks{
		Oracle:         role.NewOracle(roster, cache, fake, logger),
		DeleteCommands: deleteCommands,
		Logger:         logger,
	}, fake
}

func request(chat botapi.Chat, from int64, text string) *Request {
	u := &botapi.User{ID: from}
	return &Request{
		Chat:    chat,
		User:    u,
		Message: &botapi.Message{Chat: chat, From: u, Text: text},
		BotID:   botID,
	}
}

func TestPipeline_FirstDenyWins(t *testing.T) {
	t.Parallel()

	var calls []string
	mk := func(name string, allow bool) Guard {
		return NewFunc(name, func(context.Context, *Request) Decision {
			calls = append(calls, name)
			if allow {
				return Allowed
			}
			return Deny(name + " says no")
		})
	}

	p := New(mk("a", true), nil, mk("b", false), mk("c", false))
	if p.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (nil skipped)", p.Len())
	}

	d, name := p.Evaluate(context.Background(), &Request{})
	if d.Allow || name != "b" || d.Reply != "b says no" {
		t.Fatalf("Evaluate = %+v, %q; want deny from b", d, name)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v, want evaluation to stop at b", calls)
	}
}

func TestPipeline_EmptyAllows(t *testing.T) {
	t.Parallel()

	d, name := New().Evaluate(context.Background(), &Request{})
	if !d.Allow || name != "" {
		t.Fatalf("Evaluate = %+v, %q; want Allowed", d, name)
	}
}

func TestGroupOnly(t *testing.T) {
	t.Parallel()

	c, _ := newChecks(t, false)
	g := c.GroupOnly()
	private := botapi.Chat{ID: userID, Type: botapi.ChatPrivate}

	if d := g.Check(context.Background(), request(private, userID, "/welcome")); d.Allow || d.Reply != MsgGroupOnly {
		t.Errorf("private chat: %+v", d)
	}
	if d := g.Check(context.Background(), request(group, userID, "/welcome")); !d.Allow {
		t.Errorf("group chat denied: %+v", d)
	}
}

func TestUserAdmin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		from           int64
		text           string
		deleteCommands bool
		want           Decision
	}{
		{name: "admin", from: adminID, text: "/welcome off", want: Allowed},
		{name: "sudo", from: sudoID, text: "/welcome", want: Allowed},
		{name: "anonymous admin", from: role.AnonymousAdminBotID, text: "/welcome", want: Allowed},
		{name: "member replied to", from: userID, text: "/welcome off", want: Deny(MsgNotUserAdmin)},
		{name: "member bare command deleted", from: userID, text: "/welcome", deleteCommands: true, want: Decision{DeleteCommand: true}},
		{name: "member with args replied to", from: userID, text: "/welcome off", deleteCommands: true, want: Deny(MsgNotUserAdmin)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, fake := newChecks(t, tt.deleteCommands)
			fake.SetAdmins(groupID, adminID, botID)

			got := c.UserAdmin().Check(context.Background(), request(group, tt.from, tt.text))
			if got != tt.want {
				t.Errorf("UserAdmin = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUserAdmin_NoSender(t *testing.T) {
	t.Parallel()

	c, _ := newChecks(t, false)
	d := c.UserAdmin().Check(context.Background(), &Request{Chat: group})
	if d.Allow || d.Reply != "" || d.DeleteCommand {
		t.Errorf("missing sender should deny silently, got %+v", d)
	}
}

func TestBotRights(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		member *botapi.ChatMember
		guard  func(*Checks) Guard
		allow  bool
		reply  string
	}{
		{
			name:   "bot admin",
			member: &botapi.ChatMember{Status: botapi.StatusAdministrator, User: botapi.User{ID: botID}},
			guard:  (*Checks).BotAdmin,
			allow:  true,
		},
		{
			name:  "bot not admin",
			guard: (*Checks).BotAdmin,
			reply: MsgBotNotAdmin,
		},
		{
			name:   "restrict right",
			member: &botapi.ChatMember{Status: botapi.StatusAdministrator, User: botapi.User{ID: botID}, CanRestrictMembers: true},
			guard:  (*Checks).BotCanRestrict,
			allow:  true,
		},
		{
			name:   "admin without restrict right",
			member: &botapi.ChatMember{Status: botapi.StatusAdministrator, User: botapi.User{ID: botID}},
			guard:  (*Checks).BotCanRestrict,
			reply:  MsgCantRestrict,
		},
		{
			name:   "delete right",
			member: &botapi.ChatMember{Status: botapi.StatusAdministrator, User: botapi.User{ID: botID}, CanDeleteMessages: true},
			guard:  (*Checks).BotCanDelete,
			allow:  true,
		},
		{
			name:   "admin without delete right",
			member: &botapi.ChatMember{Status: botapi.StatusAdministrator, User: botapi.User{ID: botID}},
			guard:  (*Checks).BotCanDelete,
			reply:  MsgCantDelete,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, fake := newChecks(t, false)
			if tt.member != nil {
				fake.SetMember(groupID, *tt.member)
			}
			d := tt.guard(c).Check(context.Background(), request(group, adminID, "/mute"))
			if d.Allow != tt.allow || d.Reply != tt.reply {
				t.Errorf("got %+v, want allow=%v reply=%q", d, tt.allow, tt.reply)
			}
		})
	}
}

func TestBotRights_LookupFailureDenies(t *testing.T) {
	t.Parallel()

	c, fake := newChecks(t, false)
	fake.FailNext("getChatMember", errors.New("network down"))

	d := c.BotAdmin().Check(context.Background(), request(group, adminID, "/mute"))
	if d.Allow || d.Reply != MsgBotNotAdmin {
		t.Errorf("got %+v, want deny", d)
	}
}

func TestCreatorOrSudo(t *testing.T) {
	t.Parallel()

	const creatorID = 40
	c, fake := newChecks(t, false)
	fake.SetMember(groupID, botapi.ChatMember{Status: botapi.StatusCreator, User: botapi.User{ID: creatorID}})
	fake.SetAdmins(groupID, adminID)
	g := c.CreatorOrSudo("owner only")

	for _, id := range []int64{creatorID, sudoID} {
		if d := g.Check(context.Background(), request(group, id, "/removeallnotes")); !d.Allow {
			t.Errorf("user %d denied: %+v", id, d)
		}
	}
	if d := g.Check(context.Background(), request(group, adminID, "/removeallnotes")); d.Allow || d.Reply != "owner only" {
		t.Errorf("plain admin: %+v", d)
	}
}

func TestTierAtLeast(t *testing.T) {
	t.Parallel()

	c, _ := newChecks(t, false)
	g := c.TierAtLeast(role.Support, "nope")

	if dec := g.Check(context.Background(), request(group, sudoID, "/gban 5")); !dec.Allow {
		t.Error("sudo denied")
	}
	dec := g.Check(context.Background(), request(group, adminID, "/gban 5"))
	if dec.Allow || dec.Reply != "nope" {
		t.Errorf("chat admin decision = %+v, want denial", dec)
	}
}
