// Package notes implements the per-user notes actor: a small set of
// structured records owned by one user, persisted in that user's private
// SQLite database file.
package notes

import (
	"time"

	"github.com/google/uuid"
)

// Note is one record in a user's note set.
type Note struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
}

const maxTitleLength = 200

func timestamp(t time.Time) int64 {
	return t.UnixMilli()
}
