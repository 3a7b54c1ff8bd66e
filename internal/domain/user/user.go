package user

import (
	"context"

	"github.com/google/uuid"
)

// User is the public profile shown next to stories.
type User struct {
	ID           uuid.UUID `json:"_id"`
	Username     string    `json:"username"`
	FullName     *string   `json:"fullName,omitempty"`
	ProfilePhoto *string   `json:"profilePhoto,omitempty"`
}

type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error)
}
