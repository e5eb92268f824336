package payload

import (
	"fmt"
	"strings"
)

const (
	// RedactedKey marks a payload from which at least one sensitive key
	// was removed.
	RedactedKey = "__redacted"

	// External truncation limits for the unrevealed read path.
	maxExternalString = 5000
	maxExternalArray  = 100
)

// sensitiveKeyFragments match payload keys case-insensitively after
// normalization (lowercase, separators stripped). A key containing any
// fragment is removed wholesale from external views.
var sensitiveKeyFragments = []string{
	"prompt",
	"roomurl",
	"roomimageurl",
	"rawresponse",
	"rawrequest",
	"headers",
	"authorization",
	"apikey",
	"credential",
	"token",
	"secret",
	"password",
	"cookie",
}

func normalizeKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == '_' || r == '-' || r == ' ' || r == '.':
			// separator, dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sensitiveKey(k string) bool {
	n := normalizeKey(k)
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(n, frag) {
			return true
		}
	}
	return false
}

// Redact returns the external (unrevealed) view of a payload: sensitive
// keys removed recursively, long strings and arrays truncated with their
// original sizes recorded. The returned bool reports whether any sensitive
// key was removed; when true, the returned map also carries the
// RedactedKey marker. The input is never modified.
func Redact(p map[string]any) (map[string]any, bool) {
	if p == nil {
		return nil, false
	}
	out, removed := redactMap(p)
	if removed {
		out[RedactedKey] = true
	}
	return out, removed
}

func redactMap(m map[string]any) (map[string]any, bool) {
	out := make(map[string]any, len(m))
	removed := false
	for k, v := range m {
		if sensitiveKey(k) {
			removed = true
			continue
		}
		rv, r := redactValue(v)
		out[k] = rv
		removed = removed || r
	}
	return out, removed
}

func redactValue(v any) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t)
	case []any:
		removed := false
		n := len(t)
		limit := n
		if limit > maxExternalArray {
			limit = maxExternalArray
		}
		out := make([]any, 0, limit+1)
		for i := 0; i < limit; i++ {
			rv, r := redactValue(t[i])
			out = append(out, rv)
			removed = removed || r
		}
		if n > maxExternalArray {
			out = append(out, map[string]any{
				truncatedKey:      true,
				"original_length": n,
			})
		}
		return out, removed
	case string:
		if len(t) > maxExternalString {
			return fmt.Sprintf("%s… [truncated, %d chars]", t[:maxExternalString], len(t)), false
		}
		return t, false
	default:
		return v, false
	}
}
