package model

import "time"

// Document is a short text record edited through a sync session.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy of the document, or nil for a nil receiver.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	return &out
}
