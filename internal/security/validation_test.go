package security

import (
	"errors"
	"strings"
	"testing"
)

func nested(depth int) string {
	return strings.Repeat(`{"reply_to_message":`, depth-1) + `{}` + strings.Repeat(`}`, depth-1)
}

func TestValidateUpdate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		max     int
		wantErr error
	}{
		{name: "message update", body: `{"update_id":1,"message":{"message_id":2,"chat":{"id":-100},"new_chat_members":[{"id":7}]}}`},
		{name: "empty object", body: `{}`},
		{name: "surrounding whitespace", body: " \n{\"update_id\":3}\n"},
		{name: "at depth limit", body: nested(DefaultMaxJSONDepth)},
		{name: "over depth limit", body: nested(DefaultMaxJSONDepth + 1), wantErr: ErrJSONTooDeep},
		{name: "deep arrays", body: `{"a":` + strings.Repeat("[", 40) + strings.Repeat("]", 40) + `}`, wantErr: ErrJSONTooDeep},
		{name: "at size limit", body: `{"a":"bc"}`, max: 10},
		{name: "over size limit", body: `{"a":"bcd"}`, max: 10, wantErr: ErrMessageTooLarge},
		{name: "empty body", body: ``, wantErr: ErrInvalidJSON},
		{name: "top level array", body: `[{"update_id":1}]`, wantErr: ErrInvalidJSON},
		{name: "top level string", body: `"update"`, wantErr: ErrInvalidJSON},
		{name: "truncated", body: `{"update_id":`, wantErr: ErrInvalidJSON},
		{name: "unclosed", body: `{"message":{"text":"hi"}`, wantErr: ErrInvalidJSON},
		{name: "trailing object", body: `{}{}`, wantErr: ErrInvalidJSON},
		{name: "trailing garbage", body: `{} x`, wantErr: ErrInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateUpdate([]byte(tt.body), tt.max)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateUpdate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUpdate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUpdate_DefaultSize(t *testing.T) {
	t.Parallel()

	body := `{"text":"` + strings.Repeat("a", DefaultMaxMessageSize) + `"}`
	if err := ValidateUpdate([]byte(body), 0); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("ValidateUpdate() = %v, want ErrMessageTooLarge", err)
	}
}
