package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{
		CreatedAt: time.Date(2026, 8, 20, 10, 30, 0, 123456000, time.UTC),
		ID:        "run-abc",
	}
	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, c.ID, decoded.ID)
}

func TestDecodeCursorRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"not base64 !!!",
		"aGVsbG8",          // valid base64, not JSON
		"e30",              // "{}" — missing fields
		EncodeCursor(Cursor{ID: "only-id"}),
	} {
		_, err := DecodeCursor(input)
		assert.Error(t, err, "input %q", input)
	}
}
