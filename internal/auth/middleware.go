package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/buyeth/identity-service/internal/domain"
	apperrors "github.com/buyeth/identity-service/pkg/util"
)

// Gate guards protected operations. Every denial is the same UNAUTHORIZED error so the
// caller cannot tell a missing session from a missing role.
type Gate struct {
	sessions *SessionManager
}

// NewGate constructs a gate over sessions.
func NewGate(sessions *SessionManager) *Gate {
	return &Gate{sessions: sessions}
}

// RequireSession returns the caller or an UNAUTHORIZED error naming the request path.
func (g *Gate) RequireSession(c *fiber.Ctx) (*domain.SessionUser, error) {
	user, err := g.sessions.Current(c)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewUnauthorizedFor(c.Path())
	}
	return user, nil
}

// RequireAdmin is RequireSession plus the admin role.
func (g *Gate) RequireAdmin(c *fiber.Ctx) (*domain.SessionUser, error) {
	user, err := g.RequireSession(c)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, apperrors.NewUnauthorizedFor(c.Path())
	}
	return user, nil
}

// Authenticated rejects requests without a session.
func (g *Gate) Authenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := g.RequireSession(c); err != nil {
			return err
		}
		return c.Next()
	}
}

// Admin rejects requests whose caller is not an admin.
func (g *Gate) Admin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := g.RequireAdmin(c); err != nil {
			return err
		}
		return c.Next()
	}
}

// SessionUserFromContext retrieves the caller resolved earlier in the request.
func SessionUserFromContext(c *fiber.Ctx) (*domain.SessionUser, bool) {
	user, ok := c.Locals(sessionUserKey).(*domain.SessionUser)
	return user, ok && user != nil
}
