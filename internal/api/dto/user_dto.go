package dto

import (
	"time"

	"github.com/spec-kit/letter-service/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserRequest is the admin create/edit payload. An empty password keeps the current one.
type UserRequest struct {
	Username  string `json:"username" form:"username"`
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Password  string `json:"password" form:"password"`
	Sector    string `json:"sector" form:"sector"`
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID          string           `json:"id"`
	Username    string           `json:"username" form:"username"`
	FirstName   string           `json:"first_name" form:"first_name"`
	LastName    string           `json:"last_name" form:"last_name"`
	IsSuperuser bool             `json:"is_superuser"`
	IsStaff     bool             `json:"is_staff"`
	Sector      *domain.Sector   `json:"sector" form:"sector"`
	Kind        domain.ActorKind `json:"kind"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ActorResponse describes the caller's resolved scope.
type ActorResponse struct {
	UserID   string           `json:"user_id"`
	Username string           `json:"username" form:"username"`
	Kind     domain.ActorKind `json:"kind"`
	Sector   domain.Sector    `json:"sector,omitempty"`
}

func UserFromDomain(user *domain.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		IsSuperuser: user.IsSuperuser,
		IsStaff:     user.IsStaff,
		Sector:      user.Sector,
		Kind:        user.Actor().Kind(),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func ActorFromDomain(actor domain.Actor) ActorResponse {
	return ActorResponse{
		UserID:   actor.UserID,
		Username: actor.Username,
		Kind:     actor.Kind(),
		Sector:   actor.SectorCode(),
	}
}
