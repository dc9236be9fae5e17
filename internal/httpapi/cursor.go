package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
)

// cursorPayload is the JSON shape an opaque pagination cursor encodes,
// spec §6: "{createdAt, id}" for descending lists, "{seq}" for session
// events.
type cursorPayload struct {
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	ID        *uuid.UUID `json:"id,omitempty"`
	Seq       *int       `json:"seq,omitempty"`
}

// decodeCursor parses the "cursor" query parameter into a store.Cursor. A
// missing cursor is the zero value (first page); a present-but-malformed
// cursor is a 400 VALIDATION_ERROR per spec §6.
func decodeCursor(r *http.Request) (store.Cursor, error) {
	raw := r.URL.Query().Get("cursor")
	if raw == "" {
		return store.Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return store.Cursor{}, apperr.ErrValidation("malformed cursor")
	}
	var p cursorPayload
	if err := json.Unmarshal(decoded, &p); err != nil {
		return store.Cursor{}, apperr.ErrValidation("malformed cursor")
	}
	if p.Seq != nil {
		return store.Cursor{Seq: *p.Seq, HasSeq: true}, nil
	}
	if p.CreatedAt == nil || p.ID == nil {
		return store.Cursor{}, apperr.ErrValidation("malformed cursor")
	}
	return store.Cursor{CreatedAt: *p.CreatedAt, ID: *p.ID}, nil
}

// encodeCursor is the inverse of decodeCursor, used to mint nextCursor in a
// list response.
func encodeCursor(c store.Cursor) string {
	var p cursorPayload
	if c.HasSeq {
		p.Seq = &c.Seq
	} else {
		p.CreatedAt = &c.CreatedAt
		p.ID = &c.ID
	}
	raw, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(raw)
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// decodeLimit parses the "limit" query parameter, clamped to
// [1, maxPageLimit] with defaultPageLimit when absent or invalid.
func decodeLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultPageLimit
	}
	if n > maxPageLimit {
		return maxPageLimit
	}
	return n
}

// pageResponse is the standard list-route envelope.
type pageResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

func newPageResponse(items any, next store.Cursor, hasMore bool) pageResponse {
	resp := pageResponse{Items: items}
	if hasMore {
		resp.NextCursor = encodeCursor(next)
	}
	return resp
}
