package domain

import "time"

// SessionClaims is the identity embedded in a session token.
type SessionClaims struct {
	SubjectID string
	Email     string
	Role      Role
}

// SessionToken is a verified session token.
type SessionToken struct {
	SessionClaims
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionUser is the authenticated caller, built from the live directory record.
type SessionUser struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	ExpiresAt time.Time
}

// IsAdmin reports whether the caller holds the admin role.
func (s *SessionUser) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}
