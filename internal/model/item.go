package model

import "time"

// Item is a single lost-or-found report. Records are append-only: once
// inserted they are never edited or deleted.
type Item struct {
	ID               int64     `json:"id"`
	Type             string    `json:"type"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	OwnerContact     string    `json:"owner_contact,omitempty"`
	ImageFingerprint string    `json:"image_fingerprint,omitempty"`
	Embedding        []float64 `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// Item types.
const (
	TypeLost  = "lost"
	TypeFound = "found"
)

// ValidType reports whether t is a known item type.
func ValidType(t string) bool {
	return t == TypeLost || t == TypeFound
}
