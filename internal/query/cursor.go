package query

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrBadCursor marks a client-supplied cursor that could not be parsed.
// Handlers map it to a 400 instead of a 500.
var ErrBadCursor = errors.New("query: bad cursor")

// Cursor is the keyset position for run list pagination: the (created_at,
// id) pair of the last row the previous page returned. Opaque to clients.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

// EncodeCursor serializes a cursor for use in next_cursor.
func EncodeCursor(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a client-supplied cursor. Any malformed input is a
// bad request, never a panic.
func DecodeCursor(s string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %s", ErrBadCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %s", ErrBadCursor, err)
	}
	if c.CreatedAt.IsZero() || c.ID == "" {
		return Cursor{}, fmt.Errorf("%w: incomplete", ErrBadCursor)
	}
	return c, nil
}
