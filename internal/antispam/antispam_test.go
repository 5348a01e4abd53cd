package antispam

import (
	"context"
	"errors"
	"testing"

	"github.com/flemzord/gatekeep/internal/settings"
)

type stubRemote struct {
	ban   *Ban
	err   error
	calls int
}

func (s *stubRemote) Lookup(context.Context, int64) (*Ban, error) {
	s.calls++
	return s.ban, s.err
}

type failingBans struct{}

func (failingBans) GlobalBan(context.Context, int64) (settings.GlobalBan, bool, error) {
	return settings.GlobalBan{}, false, errors.New("db down")
}

func TestChecker_IsGloballyBanned(t *testing.T) {
	t.Parallel()

	local := settings.NewMemoryStore()
	_ = local.AddGlobalBan(context.Background(), settings.GlobalBan{UserID: 1, Reason: "spam"})

	tests := []struct {
		name      string
		store     BanStore
		remote    *stubRemote
		userID    int64
		want      bool
		wantCalls int
	}{
		{"local ban skips remote", local, &stubRemote{}, 1, true, 0},
		{"remote ban", local, &stubRemote{ban: &Ban{ID: 2}}, 2, true, 1},
		{"clean user", local, &stubRemote{}, 3, false, 1},
		{"remote outage degrades", local, &stubRemote{err: errors.New("timeout")}, 3, false, 1},
		{"local outage falls through", failingBans{}, &stubRemote{ban: &Ban{ID: 4}}, 4, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker(tt.store, tt.remote, nil)
			if got := c.IsGloballyBanned(context.Background(), tt.userID); got != tt.want {
				t.Errorf("IsGloballyBanned() = %v, want %v", got, tt.want)
			}
			if tt.remote.calls != tt.wantCalls {
				t.Errorf("remote calls = %d, want %d", tt.remote.calls, tt.wantCalls)
			}
		})
	}
}

func TestChecker_NilAndNoRemote(t *testing.T) {
	t.Parallel()

	var c *Checker
	if c.IsGloballyBanned(context.Background(), 1) {
		t.Error("nil checker reported a ban")
	}
	if NewChecker(settings.NewMemoryStore(), nil, nil).IsGloballyBanned(context.Background(), 1) {
		t.Error("empty local list reported a ban")
	}
}
