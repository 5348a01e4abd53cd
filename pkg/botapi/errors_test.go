package botapi

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		want ErrorKind
	}{
		{"Bad Request: BUTTON_URL_INVALID", KindButtonURLInvalid},
		{"Bad Request: unsupported URL protocol", KindUnsupportedURLProtocol},
		{"Bad Request: wrong HTTP URL host", KindWrongURLHost},
		{"Bad Request: Wrong url host", KindWrongURLHost},
		{"Bad Request: have no rights to send a message", KindNoRights},
		{"Bad Request: message to delete not found", KindNotFound},
		{"Bad Request: user not found", KindNotFound},
		{"Bad Request: reply message not found", KindReplyNotFound},
		{"Bad Request: can't parse entities", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()
			got := Classify(&APIError{Code: 400, Description: tt.desc})
			if got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.desc, got, tt.want)
			}
		})
	}
}

func TestClassify_NonAPIError(t *testing.T) {
	t.Parallel()

	if got := Classify(errors.New("dial tcp: refused")); got != KindUnknown {
		t.Errorf("Classify() = %s, want unknown", got)
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) = true")
	}
}
