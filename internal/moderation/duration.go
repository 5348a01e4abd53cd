package moderation

import (
	"fmt"
	"strconv"
	"time"
)

const (
	msgBadUnit   = "Invalid time type specified. Expected m,h, or d, got: %s"
	msgBadAmount = "Invalid time amount specified."
)

// parseDuration reads the <N>{m,h,d} argument of /tmute. On failure the
// second result is the reply for the user.
func parseDuration(s string) (time.Duration, string) {
	if s == "" {
		return 0, msgBadAmount
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 0, fmt.Sprintf(msgBadUnit, s[len(s)-1:])
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, msgBadAmount
	}
	return time.Duration(n) * unit, ""
}
