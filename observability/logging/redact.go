package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces credentials in log output.
const RedactedValue = "[REDACTED]"

// credentialKeys name attributes whose values are secrets no matter who logs
// them. Matching is case-insensitive on the whole key.
var credentialKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"jwt":           {},
	"secret":        {},
	"passphrase":    {},
	"password":      {},
	"privatekey":    {},
	"signature":     {},
}

// plainKeys are emitted verbatim by MaskField.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"operation": {},
	"class":     {},
	"method":    {},
	"module":    {},
	"requestid": {},
	"txid":      {},
	"itemid":    {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsCredential reports whether key names a secret.
func IsCredential(key string) bool {
	_, ok := credentialKeys[normalizeKey(key)]
	return ok
}

// MaskField builds a log attribute for a caller-supplied value. Credentials
// are replaced outright, keeping an HTTP auth scheme so "Bearer" and "Basic"
// stay distinguishable. Known operational keys pass through. Anything else is
// shortened to its first and last two characters, enough to correlate lines
// without leaking client identities.
func MaskField(key, value string) slog.Attr {
	value = strings.TrimSpace(value)
	if value == "" {
		return slog.String(key, value)
	}
	if IsCredential(key) {
		return slog.String(key, redactCredential(value))
	}
	if _, ok := plainKeys[normalizeKey(key)]; ok {
		return slog.String(key, value)
	}
	return slog.String(key, shorten(value))
}

func redactCredential(value string) string {
	if scheme, _, ok := strings.Cut(value, " "); ok && isAuthScheme(scheme) {
		return scheme + " " + RedactedValue
	}
	return RedactedValue
}

func isAuthScheme(s string) bool {
	switch strings.ToLower(s) {
	case "bearer", "basic":
		return true
	}
	return false
}

func shorten(value string) string {
	runes := []rune(value)
	if len(runes) <= 6 {
		return RedactedValue
	}
	return string(runes[:2]) + "..." + string(runes[len(runes)-2:])
}

// redactAttr is installed as part of the handler's ReplaceAttr so credential
// keys are masked even when a call site forgets MaskField.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindString && IsCredential(attr.Key) && attr.Value.String() != "" {
		return slog.String(attr.Key, redactCredential(attr.Value.String()))
	}
	return attr
}
