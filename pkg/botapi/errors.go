package botapi

import (
	"errors"
	"strings"
)

// ErrorKind groups Bot API failures that callers react to differently.
type ErrorKind int

// Error kinds recognized by Classify.
const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindButtonURLInvalid
	KindUnsupportedURLProtocol
	KindWrongURLHost
	KindNoRights
	KindReplyNotFound
)

// String returns a short label suitable for logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindButtonURLInvalid:
		return "button_url_invalid"
	case KindUnsupportedURLProtocol:
		return "unsupported_url_protocol"
	case KindWrongURLHost:
		return "wrong_url_host"
	case KindNoRights:
		return "no_rights"
	case KindReplyNotFound:
		return "reply_not_found"
	default:
		return "unknown"
	}
}

var kindMarkers = []struct {
	kind    ErrorKind
	markers []string
}{
	{KindReplyNotFound, []string{"reply message not found", "message to be replied not found"}},
	{KindNotFound, []string{
		"message to delete not found",
		"message to edit not found",
		"message can't be deleted",
		"message is not modified",
		"user not found",
		"member not found",
		"participant_id_invalid",
	}},
	{KindButtonURLInvalid, []string{"button_url_invalid"}},
	{KindUnsupportedURLProtocol, []string{"unsupported url protocol"}},
	{KindWrongURLHost, []string{"wrong url host", "wrong http url"}},
	{KindNoRights, []string{"have no rights to send a message", "not enough rights to send", "chat_write_forbidden"}},
}

// Classify maps an error returned by the client to an ErrorKind.
// Errors that are not *APIError are KindUnknown.
func Classify(err error) ErrorKind {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return KindUnknown
	}
	desc := strings.ToLower(apiErr.Description)
	for _, km := range kindMarkers {
		for _, m := range km.markers {
			if strings.Contains(desc, m) {
				return km.kind
			}
		}
	}
	return KindUnknown
}

// IsNotFound reports whether err means the target message or member is already gone.
func IsNotFound(err error) bool {
	return err != nil && Classify(err) == KindNotFound
}
