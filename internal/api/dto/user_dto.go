package dto

import (
	"time"

	"github.com/buyeth/identity-service/internal/domain"
)

// CredentialsRequest is the body of bootstrap, signup and login.
type CredentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
}

// ChangePasswordRequest is the body of a self-service password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AdminCreateUserRequest payload for admin-created accounts.
type AdminCreateUserRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	Active   *bool       `json:"active"`
}

// AdminUpdateUserRequest carries only the fields to change.
type AdminUpdateUserRequest struct {
	Name     *string      `json:"name"`
	Role     *domain.Role `json:"role"`
	Active   *bool        `json:"active"`
	Password *string      `json:"password"`
}

// ToInput converts the request into a directory update.
func (r AdminUpdateUserRequest) ToInput() domain.UpdateUserInput {
	return domain.UpdateUserInput{
		Name:     r.Name,
		Role:     r.Role,
		Active:   r.Active,
		Password: r.Password,
	}
}

// UserResponse is the public view of an account. The password hash never leaves the store.
type UserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewUserResponse maps a directory record.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

// NewUserListResponse maps a directory listing.
func NewUserListResponse(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}

// SessionUserResponse describes the authenticated caller.
type SessionUserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// NewSessionUserResponse maps a resolved session.
func NewSessionUserResponse(u *domain.SessionUser) SessionUserResponse {
	return SessionUserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		ExpiresAt: u.ExpiresAt.UTC(),
	}
}

// SessionResponse is returned when a session cookie was issued.
type SessionResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// SetupStatusResponse reports directory initialization state.
type SetupStatusResponse struct {
	UserCount int `json:"userCount"`
}
