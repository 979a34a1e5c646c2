package handlers

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestDealCursorRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 4, 12, 9, 30, 0, 0, time.UTC)
	enc := encodeDealCursor(createdAt, 42)

	cur, err := decodeDealCursor(enc)
	if err != nil {
		t.Fatalf("decodeDealCursor: %v", err)
	}
	if !cur.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", cur.CreatedAt, createdAt)
	}
	if cur.ID != 42 {
		t.Errorf("ID = %d, want 42", cur.ID)
	}
}

func TestDecodeDealCursorRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not base64", "%%%"},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("hello"))},
		{"zero id", base64.RawURLEncoding.EncodeToString([]byte(`{"t":"2026-04-12T09:30:00Z","id":0}`))},
		{"zero time", base64.RawURLEncoding.EncodeToString([]byte(`{"id":7}`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeDealCursor(tt.in); err != errBadCursor {
				t.Errorf("decodeDealCursor(%q) error = %v, want errBadCursor", tt.in, err)
			}
		})
	}
}
