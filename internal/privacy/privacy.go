// Package privacy keeps user identifiers and credentials out of logs and error reports.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Pre-compiled patterns
var (
	// URL with a query string, which may carry coordinates or tokens
	urlQueryPattern = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)

	sensitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)x-ebirdapitoken[=:]\s*\S+`),
		regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)token[=:]\S+`),
		regexp.MustCompile(`(?i)password[=:]\S+`),
		regexp.MustCompile(`(?i)user[_-]?id[=:]\S+`),
	}
)

// userRefBytes is how much of the digest a user reference keeps.
const userRefBytes = 6

// ScrubMessage removes URL query strings and credential-looking values from a message.
func ScrubMessage(message string) string {
	scrubbed := urlQueryPattern.ReplaceAllString(message, "$1?[REDACTED]")
	for _, re := range sensitivePatterns {
		scrubbed = re.ReplaceAllString(scrubbed, "[REDACTED]")
	}
	return scrubbed
}

// UserRef returns a stable pseudonym for userID that can be logged.
// The same id always maps to the same reference.
func UserRef(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(userID))
	return "user-" + hex.EncodeToString(sum[:userRefBytes])
}
