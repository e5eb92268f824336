// Package payload bounds and redacts the open-ended key/value payloads
// carried by telemetry events.
//
// Two independent policies live here: Bound caps the serialized size of a
// payload before it is written to the event log, and Redact strips sensitive
// data for the external (unrevealed) read path. Both walk the payload as a
// tree of scalar/array/map nodes rather than trusting callers to sanitize
// per field.
package payload

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	// truncatedKey marks a payload that was replaced by its summary.
	truncatedKey    = "__truncated"
	originalSizeKey = "original_size"

	// How much of the original payload survives truncation: the first
	// prefixEntries keys (sorted), each value rendered as a scalar capped
	// at prefixValueLen bytes. Small enough that the summary itself can
	// never exceed the cap.
	prefixEntries  = 5
	prefixValueLen = 256
	prefixKeyLen   = 128
)

// SerializedSize returns the JSON-encoded length of p, or 0 when p is nil.
// Unencodable payloads report -1; callers treat those as over any cap.
func SerializedSize(p map[string]any) int {
	if p == nil {
		return 0
	}
	b, err := json.Marshal(p)
	if err != nil {
		return -1
	}
	return len(b)
}

// Bound enforces maxBytes on the serialized payload. Payloads at or under
// the cap pass through untouched. Oversized payloads are replaced with a
// summary object carrying the truncation marker, the original serialized
// size, and a small prefix of the original entries for partial
// debuggability. The summary re-serializes well under any reasonable cap.
func Bound(p map[string]any, maxBytes int) map[string]any {
	size := SerializedSize(p)
	if size >= 0 && size <= maxBytes {
		return p
	}

	out := map[string]any{
		truncatedKey:    true,
		originalSizeKey: size,
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		if len(k) <= prefixKeyLen {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	kept := 0
	for _, k := range keys {
		if kept >= prefixEntries {
			break
		}
		out[k] = scalarPreview(p[k])
		kept++
	}
	return out
}

// scalarPreview renders a value as a short scalar for the truncation summary.
func scalarPreview(v any) any {
	switch t := v.(type) {
	case nil, bool, float64, int, int64:
		return t
	case string:
		if len(t) > prefixValueLen {
			return t[:prefixValueLen]
		}
		return t
	default:
		s := fmt.Sprintf("%v", t)
		if len(s) > prefixValueLen {
			s = s[:prefixValueLen]
		}
		return s
	}
}
