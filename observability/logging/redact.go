package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"method":    {},
	"caller":    {},
	"operation": {},
}

// IsAllowlisted reports whether the provided key is exempt from redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// allowlisted. Bearer tokens keep their scheme so logs still show what was sent.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	if scheme, _, ok := strings.Cut(value, " "); ok && strings.EqualFold(scheme, "bearer") {
		return slog.String(key, scheme+" "+RedactedValue)
	}
	return slog.String(key, RedactedValue)
}
