package model

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for local and shadow users.
type UserStore interface {
	GetByFederatedID(ctx context.Context, federatedID string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
}

// User is a local account or a shadow of an account owned by a remote instance.
type User struct {
	ID                uuid.UUID
	FederatedID       string
	Username          string
	Email             string
	FirstName         string
	LastName          string
	ProfilePictureURL string
	HasVerifiedEmail  bool
	IsShadow          bool
	// HomeInstance is the base URL of the owning instance for shadow users.
	HomeInstance string
	CreatedAt    time.Time
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Identity returns the public-facing fields carried by session tokens.
func (u User) Identity() SessionIdentity {
	return SessionIdentity{
		ID:                u.ID.String(),
		FederatedID:       u.FederatedID,
		Username:          u.Username,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		ProfilePictureURL: u.ProfilePictureURL,
		HasVerifiedEmail:  u.HasVerifiedEmail,
	}
}

// SessionIdentity is the payload of a session token and the local shape of
// a user returned by a successful SSO verification.
type SessionIdentity struct {
	ID                string `json:"id"`
	FederatedID       string `json:"federatedId"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	ProfilePictureURL string `json:"profilePictureUrl"`
	HasVerifiedEmail  bool   `json:"hasVerifiedEmail"`
}
