package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every secret the Redactor finds.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches configuration keys that hold credentials:
// token, webhook_secret, bearer_token, spamwatch api_key and so on.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|key|credential)`)

// Redactor scrubs Bot API tokens, bearer credentials and literal secrets
// loaded from the configuration. It is safe for concurrent use; modules add
// their literals during Provision while loggers are already running.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor using DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern registers an extra pattern.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	r.patterns = append(r.patterns, pattern)
	r.mu.Unlock()
}

// AddLiteral registers a secret known only at runtime, such as a webhook
// secret. Empty and duplicate values are ignored, so a module may call it
// again on every reload.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.literals {
		if l == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// Redact returns s with every pattern match and literal replaced.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	return s
}

// RedactMap scrubs a decoded configuration document in place. Non-empty
// strings under credential-looking keys are masked whole; every other
// string goes through Redact.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && secretKeyPattern.MatchString(k) {
			m[k] = RedactPlaceholder
			continue
		}
		m[k] = r.redactValue(v)
	}
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.Redact(val)
	case map[string]any:
		r.RedactMap(val)
	case []any:
		for i, item := range val {
			val[i] = r.redactValue(item)
		}
	}
	return v
}

// DefaultPatterns returns the patterns every Redactor starts with.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Bot API token, also when embedded in a /bot<token>/ method URL.
		regexp.MustCompile(`[0-9]{6,12}:[A-Za-z0-9_-]{30,}`),
		// Bearer tokens in echoed headers.
		regexp.MustCompile(`(?i)bearer [A-Za-z0-9._~+/=-]{16,}`),
	}
}
