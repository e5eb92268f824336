package payload

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCap = 10_000

func TestBoundSmallPayloadUntouched(t *testing.T) {
	p := map[string]any{"step": "render", "attempt": 1}
	out := Bound(p, testCap)
	assert.Equal(t, p, out)
	assert.NotContains(t, out, truncatedKey)
}

func TestBoundOversizedPayloadReplaced(t *testing.T) {
	p := map[string]any{
		"step": "render",
		"blob": strings.Repeat("x", 20_000),
	}
	origSize := SerializedSize(p)
	require.Greater(t, origSize, testCap)

	out := Bound(p, testCap)

	assert.Equal(t, true, out[truncatedKey])
	assert.Equal(t, origSize, out[originalSizeKey])
	// A prefix of the original entries survives for debuggability.
	assert.Equal(t, "render", out["step"])
}

// Re-serializing the truncated summary must never itself exceed the cap.
func TestBoundIdempotent(t *testing.T) {
	p := map[string]any{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		p[k] = strings.Repeat(k, 5_000)
	}

	out := Bound(p, testCap)
	require.Equal(t, true, out[truncatedKey])

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(b), testCap)

	// Bounding an already-bounded payload changes nothing.
	again := Bound(out, testCap)
	assert.Equal(t, out, again)
}

func TestBoundOriginalSizeMatchesSerializedLength(t *testing.T) {
	p := map[string]any{"data": strings.Repeat("y", 15_000)}
	b, err := json.Marshal(p)
	require.NoError(t, err)

	out := Bound(p, testCap)
	assert.Equal(t, len(b), out[originalSizeKey])
}

func TestBoundPrefixValuesCapped(t *testing.T) {
	p := map[string]any{
		"aaa":  strings.Repeat("v", 50_000),
		"bbb":  42.0,
		"zzzz": strings.Repeat("w", 50_000),
	}
	out := Bound(p, testCap)

	s, ok := out["aaa"].(string)
	require.True(t, ok)
	assert.Len(t, s, prefixValueLen)
	assert.Equal(t, 42.0, out["bbb"])
}

func TestSerializedSizeNil(t *testing.T) {
	assert.Equal(t, 0, SerializedSize(nil))
}

func TestSerializedSizeUnencodable(t *testing.T) {
	p := map[string]any{"ch": make(chan int)}
	assert.Equal(t, -1, SerializedSize(p))
	// Unencodable payloads are treated as over-cap and summarized.
	out := Bound(p, testCap)
	assert.Equal(t, true, out[truncatedKey])
}
