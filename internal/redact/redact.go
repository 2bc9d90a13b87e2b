// Package redact strips secrets from JSON payloads before they reach logs.
package redact

import (
	"encoding/json"
	"strings"
)

const placeholder = "***REDACTED***"

var secretKeys = map[string]struct{}{
	"passcode":   {},
	"password":   {},
	"mnemonic":   {},
	"secret_key": {},
	"token":      {},
	"signature":  {},
	"sign":       {},
}

// JSON returns raw with every secret-bearing field replaced. Input that is
// not valid JSON is returned unchanged.
func JSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}

	b, err := json.Marshal(redactValue(v))
	if err != nil {
		return raw
	}
	return string(b)
}

// Value marshals v and redacts the result.
func Value(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return JSON(string(b))
}

// Short keeps the first and last four characters of a secret-ish string.
func Short(s string) string {
	if len(s) <= 12 {
		return placeholder
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			if _, ok := secretKeys[strings.ToLower(k)]; ok {
				out[k] = placeholder
				continue
			}
			out[k] = redactValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = redactValue(t[i])
		}
		return out
	default:
		return v
	}
}
