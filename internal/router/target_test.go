package router

import (
	"testing"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

func TestEventTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      *botapi.Message
		args     []string
		wantID   int64
		wantRest int
		wantOK   bool
	}{
		{
			name:   "reply wins",
			msg:    &botapi.Message{Text: "/mute 42", ReplyToMessage: &botapi.Message{From: &botapi.User{ID: 7}}},
			args:   []string{"42"},
			wantID: 7, wantRest: 1, wantOK: true,
		},
		{
			name: "text mention",
			msg: &botapi.Message{
				Text:     "/tmute Zoë 3h",
				Entities: []botapi.MessageEntity{{Type: "text_mention", Offset: 7, Length: 3, User: &botapi.User{ID: 9}}},
			},
			args:   []string{"Zoë", "3h"},
			wantID: 9, wantRest: 1, wantOK: true,
		},
		{
			name:   "numeric id",
			msg:    &botapi.Message{Text: "/tmute 55 2d"},
			args:   []string{"55", "2d"},
			wantID: 55, wantRest: 1, wantOK: true,
		},
		{
			name: "username is not resolvable",
			msg:  &botapi.Message{Text: "/mute @someone"},
			args: []string{"@someone"},
		},
		{
			name: "nothing",
			msg:  &botapi.Message{Text: "/mute"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev := &Event{Message: tt.msg, Args: tt.args}
			id, rest, ok := ev.Target()
			if ok != tt.wantOK || id != tt.wantID || len(rest) != tt.wantRest {
				t.Errorf("Target() = %d, %v, %v; want %d, %d args, %v", id, rest, ok, tt.wantID, tt.wantRest, tt.wantOK)
			}
		})
	}
}
