package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         string
	TokenVersion int
	CreatedAt    time.Time
}

// PublicUser is the projection returned to clients. It never carries the hash.
type PublicUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int    `json:"tokenVersion"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID.String(),
		Email:        u.Email,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
	}
}

// Principal is the request-scoped identity attached by the authentication
// middleware after a successful access token check.
type Principal struct {
	ID           string
	Email        string
	Role         string
	TokenVersion int
}
