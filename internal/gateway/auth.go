package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/gatekeep/internal/security"
)

// adminAuth guards /status and /api. Each attempt is counted against the
// caller's host before credentials are compared, and every outcome lands in
// the audit log.
type adminAuth struct {
	cfg     AuthConfig
	audit   *security.AuditLogger
	limiter *security.RateLimiter
}

func (a adminAuth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.limiter.Allow(security.KindAuth, remoteHost(r)); err != nil {
			a.record(security.EventRateLimit, r, "auth attempts exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		scheme, ok := a.authenticate(r)
		if !ok {
			a.record(security.EventAuthFailure, r, scheme)
			w.Header().Set("WWW-Authenticate", `Bearer realm="gatekeep"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		a.record(security.EventAuthSuccess, r, scheme)
		next.ServeHTTP(w, r)
	})
}

// authenticate reports the scheme the request used and whether its
// credentials match. Scheme names compare case-insensitively.
func (a adminAuth) authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "missing authorization header", false
	}
	scheme, creds, _ := strings.Cut(header, " ")

	switch {
	case strings.EqualFold(scheme, "Bearer"):
		if a.cfg.BearerToken == "" {
			return "bearer not enabled", false
		}
		return "bearer", secureEqual(creds, a.cfg.BearerToken)
	case strings.EqualFold(scheme, "Basic"):
		if a.cfg.BasicUser == "" || a.cfg.BasicPass == "" {
			return "basic not enabled", false
		}
		user, pass, ok := r.BasicAuth()
		userOK := secureEqual(user, a.cfg.BasicUser)
		passOK := secureEqual(pass, a.cfg.BasicPass)
		return "basic", ok && userOK && passOK
	default:
		return "unsupported scheme", false
	}
}

func (a adminAuth) record(t security.EventType, r *http.Request, detail string) {
	if a.audit == nil {
		return
	}
	a.audit.Log(security.AuditEvent{
		Type:   t,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
