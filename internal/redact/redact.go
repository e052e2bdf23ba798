// Package redact scrubs sensitive fragments from strings before they reach
// logs or error responses: connection strings, API credentials, JWTs,
// storage paths, and raw SQL.
package redact

import (
	"regexp"
	"sync"
)

// Placeholder values substituted for redacted fragments.
const (
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	KeyPlaceholder        = "[REDACTED_KEY]"
	PathPlaceholder       = "[REDACTED_PATH]"
	JWTPlaceholder        = "[REDACTED_JWT]"
	SQLPlaceholder        = "[REDACTED_SQL]"
	HostPlaceholder       = "[REDACTED_HOST]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Order matters: credential-bearing URLs must be scrubbed before the bare
// host pattern fires on their tail.
var rules = []rule{
	{regexp.MustCompile(`(?i)(postgres|redis|mysql|s3|https?)://[^@\s]+@`), CredentialPlaceholder + "@"},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|authorization|bearer)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), KeyPlaceholder},
	{regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`), KeyPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), JWTPlaceholder},
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE)(?:[\s\w,*()='"]+)?`), SQLPlaceholder},
	{regexp.MustCompile(`(/[\w.-]+){2,}`), PathPlaceholder},
	{regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}:\d{1,5}\b`), HostPlaceholder},
}

var mu sync.RWMutex

// String returns s with every sensitive fragment replaced by its
// placeholder.
func String(s string) string {
	mu.RLock()
	defer mu.RUnlock()

	out := s
	for _, r := range rules {
		out = r.pattern.ReplaceAllString(out, r.replacement)
	}
	return out
}

// Error redacts an error's message. Nil-safe.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// RegisterPattern adds a redaction rule at runtime. Used by deployments
// whose providers embed tenant-specific secrets in error text.
func RegisterPattern(pattern *regexp.Regexp, replacement string) {
	mu.Lock()
	defer mu.Unlock()
	rules = append(rules, rule{pattern: pattern, replacement: replacement})
}
