package logger

import (
	"strings"
	"unicode/utf8"
)

// MaxLoggedBytes caps text fields written to debug logs.
const MaxLoggedBytes = 64 * 1024

var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"set-cookie":    {},
	"x-api-key":     {},
}

// RedactHeader returns a loggable form of a header value. Credentials keep
// their scheme (e.g. "Bearer") and a short prefix only.
func RedactHeader(name, value string) string {
	if _, ok := sensitiveHeaders[strings.ToLower(name)]; !ok {
		return value
	}

	scheme, token, found := strings.Cut(value, " ")
	if !found {
		token, scheme = value, ""
	}

	masked := "***"
	if len(token) > 8 {
		masked = token[:4] + "***"
	}
	if scheme == "" {
		return masked
	}
	return scheme + " " + masked
}

// TruncateBytes cuts s to at most maxBytes without splitting a UTF-8
// sequence. The second return reports whether anything was cut.
func TruncateBytes(s string, maxBytes int) (string, bool) {
	if len(s) <= maxBytes {
		return s, false
	}

	end := maxBytes
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end], true
}
