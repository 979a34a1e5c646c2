package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// dealCursor is the keyset position for the deals listing. Deals are ordered
// by (created_at DESC, id DESC); the cursor carries the last row seen so the
// next page never shifts when new deals arrive mid-scroll.
type dealCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uint      `json:"id"`
}

var errBadCursor = errors.New("malformed cursor")

func encodeDealCursor(createdAt time.Time, id uint) string {
	raw, _ := json.Marshal(dealCursor{CreatedAt: createdAt, ID: id})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeDealCursor(s string) (dealCursor, error) {
	var cur dealCursor
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cur, errBadCursor
	}
	if err := json.Unmarshal(raw, &cur); err != nil {
		return cur, errBadCursor
	}
	if cur.ID == 0 || cur.CreatedAt.IsZero() {
		return cur, errBadCursor
	}
	return cur, nil
}
