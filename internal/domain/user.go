package domain

import (
	"strings"
	"time"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is a directory record. PasswordHash never leaves the repository layer in responses.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	Active       bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput carries the fields accepted when creating a record.
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Role     Role
	Active   *bool

	// Bootstrap makes the create conditional on an empty directory.
	Bootstrap bool
}

// UpdateUserInput is a partial update; nil fields are left untouched.
type UpdateUserInput struct {
	Name     *string
	Role     *Role
	Active   *bool
	Password *string
}

// Empty reports whether no field is set.
func (in UpdateUserInput) Empty() bool {
	return in.Name == nil && in.Role == nil && in.Active == nil && in.Password == nil
}

// NormalizeEmail lower-cases and trims an address for use as the uniqueness key. The result
// never shares memory with raw.
func NormalizeEmail(raw string) string {
	return strings.Clone(strings.ToLower(strings.TrimSpace(raw)))
}

// NormalizeName trims a display name into storage that does not share memory with raw.
func NormalizeName(raw string) string {
	return strings.Clone(strings.TrimSpace(raw))
}
