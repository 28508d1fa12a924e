package model

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is a single user-submitted prompt, fanned out to one or more
// providers. Immutable once created.
type Prompt struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Text      string
	CreatedAt time.Time
}
