package logger

import (
	"regexp"
	"strings"

	"github.com/tphakala/lifer/internal/privacy"
)

const redacted = "[REDACTED]"

var (
	// credentials in free text, e.g. "X-eBirdApiToken: abc" or "password=hunter2"
	credentialPattern = regexp.MustCompile(`(?i)((?:x-ebirdapitoken|api[_-]?key|token|secret|passw(?:or)?d)[\s:=]+)[^;,\s]+`)
	// Sentry DSNs carry the project key as userinfo
	dsnKeyPattern = regexp.MustCompile(`(https?://)[0-9a-f]{16,}@`)
)

// Keys whose string values are never logged.
var sensitiveKeys = []string{"password", "secret", "token", "api_key", "apikey", "authorization", "dsn"}

// Redact removes credentials and URL query strings from s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = credentialPattern.ReplaceAllString(s, "${1}"+redacted)
	s = dsnKeyPattern.ReplaceAllString(s, "${1}"+redacted+"@")
	return privacy.ScrubMessage(s)
}

func isSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
