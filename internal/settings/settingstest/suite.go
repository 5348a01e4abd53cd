// Package settingstest holds a behavioural test suite shared by every
// settings.Store implementation.
package settingstest

import (
	"context"
	"errors"
	"testing"

	"github.com/flemzord/gatekeep/internal/markup"
	"github.com/flemzord/gatekeep/internal/settings"
)

// Run exercises a Store created fresh by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) settings.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("WelcomeDefaults", func(t *testing.T) {
		s := newStore(t)
		g, err := s.Welcome(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if !g.Enabled || g.Type != settings.TypeText || g.Text != "" {
			t.Errorf("default welcome = %+v", g)
		}
		p, err := s.MutePolicy(ctx, 1)
		if err != nil || p != settings.MuteOff {
			t.Errorf("default mute policy = %q, %v", p, err)
		}
	})

	t.Run("WelcomeRoundTrip", func(t *testing.T) {
		s := newStore(t)
		if err := s.SetWelcomeEnabled(ctx, 1, false); err != nil {
			t.Fatal(err)
		}
		want := settings.Greeting{
			Type:    settings.TypeButtonText,
			Text:    "Hi {first}",
			Buttons: []markup.Button{{Text: "Rules", URL: "example.com"}, {Text: "Chat", URL: "t.me/x", SameLine: true}},
		}
		if err := s.SetWelcome(ctx, 1, want); err != nil {
			t.Fatal(err)
		}
		got, err := s.Welcome(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if got.Enabled {
			t.Error("SetWelcome() must preserve the disabled flag")
		}
		if got.Text != want.Text || got.Type != want.Type || len(got.Buttons) != 2 || got.Buttons[1] != want.Buttons[1] {
			t.Errorf("welcome = %+v, want %+v", got, want)
		}

		if err := s.ResetWelcome(ctx, 1); err != nil {
			t.Fatal(err)
		}
		got, _ = s.Welcome(ctx, 1)
		if got.Text != "" || len(got.Buttons) != 0 || got.Enabled {
			t.Errorf("after reset = %+v", got)
		}
	})

	t.Run("GoodbyeMedia", func(t *testing.T) {
		s := newStore(t)
		if err := s.SetGoodbye(ctx, 2, settings.Greeting{Type: settings.TypeSticker, FileID: "STK"}); err != nil {
			t.Fatal(err)
		}
		g, err := s.Goodbye(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if !g.Enabled || g.Type != settings.TypeSticker || g.FileID != "STK" {
			t.Errorf("goodbye = %+v", g)
		}
		if err := s.SetGoodbyeEnabled(ctx, 2, false); err != nil {
			t.Fatal(err)
		}
		if g, _ := s.Goodbye(ctx, 2); g.Enabled || g.FileID != "STK" {
			t.Errorf("goodbye after disable = %+v", g)
		}
		if err := s.ResetGoodbye(ctx, 2); err != nil {
			t.Fatal(err)
		}
		if g, _ := s.Goodbye(ctx, 2); g.FileID != "" {
			t.Errorf("goodbye after reset = %+v", g)
		}
	})

	t.Run("MuteAndHumanChecks", func(t *testing.T) {
		s := newStore(t)
		if err := s.SetMutePolicy(ctx, 3, settings.MuteStrong); err != nil {
			t.Fatal(err)
		}
		if p, _ := s.MutePolicy(ctx, 3); p != settings.MuteStrong {
			t.Errorf("policy = %q", p)
		}
		if ok, _ := s.HumanCheckPassed(ctx, 10, 3); ok {
			t.Error("human check passed before being set")
		}
		if err := s.SetHumanCheckPassed(ctx, 10, 3); err != nil {
			t.Fatal(err)
		}
		if err := s.SetHumanCheckPassed(ctx, 10, 3); err != nil {
			t.Fatalf("second SetHumanCheckPassed() error: %v", err)
		}
		if ok, _ := s.HumanCheckPassed(ctx, 10, 3); !ok {
			t.Error("human check not recorded")
		}
		if ok, _ := s.HumanCheckPassed(ctx, 10, 4); ok {
			t.Error("human check leaked across chats")
		}
	})

	t.Run("CleanFlags", func(t *testing.T) {
		s := newStore(t)
		if err := s.SetCleanService(ctx, 5, true); err != nil {
			t.Fatal(err)
		}
		if ok, _ := s.CleanService(ctx, 5); !ok {
			t.Error("clean service not enabled")
		}
		if err := s.SetCleanWelcomeEnabled(ctx, 5, true); err != nil {
			t.Fatal(err)
		}
		if err := s.SetCleanWelcomeMessages(ctx, 5, 77, 76); err != nil {
			t.Fatal(err)
		}
		cw, err := s.CleanWelcome(ctx, 5)
		if err != nil {
			t.Fatal(err)
		}
		if !cw.Enabled || cw.LastWelcomeID != 77 || cw.LastJoinID != 76 {
			t.Errorf("clean welcome = %+v", cw)
		}
	})

	t.Run("Notes", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Note(ctx, 6, "rules"); !errors.Is(err, settings.ErrNotFound) {
			t.Fatalf("missing note error = %v, want ErrNotFound", err)
		}
		for _, name := range []string{"Rules", "faq"} {
			if err := s.SaveNote(ctx, settings.Note{ChatID: 6, Name: name, Type: settings.TypeText, Text: "text of " + name}); err != nil {
				t.Fatal(err)
			}
		}
		n, err := s.Note(ctx, 6, "RULES")
		if err != nil {
			t.Fatal(err)
		}
		if n.Name != "rules" || n.Text != "text of Rules" {
			t.Errorf("note = %+v", n)
		}

		list, err := s.Notes(ctx, 6)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 2 || list[0].Name != "faq" || list[1].Name != "rules" {
			t.Errorf("notes = %+v", list)
		}

		if ok, _ := s.DeleteNote(ctx, 6, "faq"); !ok {
			t.Error("DeleteNote() = false")
		}
		if ok, _ := s.DeleteNote(ctx, 6, "faq"); ok {
			t.Error("second DeleteNote() = true")
		}
		if n, _ := s.DeleteAllNotes(ctx, 6); n != 1 {
			t.Errorf("DeleteAllNotes() = %d, want 1", n)
		}
	})

	t.Run("GlobalBans", func(t *testing.T) {
		s := newStore(t)
		if _, ok, _ := s.GlobalBan(ctx, 9); ok {
			t.Error("unexpected ban")
		}
		if err := s.AddGlobalBan(ctx, settings.GlobalBan{UserID: 9, Reason: "spam"}); err != nil {
			t.Fatal(err)
		}
		b, ok, err := s.GlobalBan(ctx, 9)
		if err != nil || !ok || b.Reason != "spam" {
			t.Errorf("GlobalBan() = %+v, %v, %v", b, ok, err)
		}
		if err := s.RemoveGlobalBan(ctx, 9); err != nil {
			t.Fatal(err)
		}
		if _, ok, _ := s.GlobalBan(ctx, 9); ok {
			t.Error("ban not removed")
		}
	})
}
