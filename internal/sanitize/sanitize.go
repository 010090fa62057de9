// Package sanitize redacts credential material from structured values before
// they are persisted. It runs unconditionally in front of the audit log;
// there is no bypass path.
package sanitize

import (
	"regexp"
	"strings"
)

// Redacted is the marker substituted for values under sensitive keys.
const Redacted = "***REDACTED***"

// sensitiveKeys is the fixed vocabulary matched case-insensitively as a
// substring of map keys. A matching key is redacted wholesale regardless of
// its value, including nil values.
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"credential",
	"auth",
	"bearer",
	"access_token",
	"refresh_token",
	"private_key",
	"client_secret",
	"authorization",
}

// tokenShaped matches strings made entirely of base64/url-safe token
// characters. Strings of this shape that are 30+ characters long are masked
// even when their key is not sensitive.
var tokenShaped = regexp.MustCompile(`^[A-Za-z0-9+/=_-]+$`)

const tokenMinLen = 30

// Sanitize recursively walks maps, slices and scalars and returns a copy with
// credential material redacted. It never panics and is idempotent: sanitizing
// an already-sanitized value is a no-op.
func Sanitize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if SensitiveKey(k) {
				out[k] = Redacted
			} else {
				out[k] = Sanitize(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = Sanitize(elem)
		}
		return out
	case string:
		return maskToken(v)
	default:
		return v
	}
}

// SensitiveKey reports whether a map key matches the sensitive vocabulary.
func SensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// maskToken masks token-shaped strings to first4...last4. The masked form
// contains "..." which the token character class excludes, so re-sanitizing
// is a no-op.
func maskToken(s string) string {
	if len(s) < tokenMinLen || !tokenShaped.MatchString(s) {
		return s
	}
	return MaskSecret(s)
}

// MaskSecret masks a known-secret string to first4...last4, or redacts it
// outright when it is too short to mask safely.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return Redacted
	}
	return s[:4] + "..." + s[len(s)-4:]
}
