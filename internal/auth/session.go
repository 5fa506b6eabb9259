package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/buyeth/identity-service/internal/config"
	"github.com/buyeth/identity-service/internal/domain"
	"github.com/buyeth/identity-service/internal/repository"
	apperrors "github.com/buyeth/identity-service/pkg/util"
)

const sessionUserKey = "session_user"

// SessionManager binds session tokens to the session cookie.
type SessionManager struct {
	tokens *TokenManager
	users  repository.UserRepository
	cfg    config.SessionConfig
}

// NewSessionManager constructs a manager for the cookie described by cfg.
func NewSessionManager(tokens *TokenManager, users repository.UserRepository, cfg config.SessionConfig) *SessionManager {
	if cfg.CookieName == "" {
		cfg.CookieName = "session"
	}
	return &SessionManager{tokens: tokens, users: users, cfg: cfg}
}

// Issue signs a token for user and sets it as the session cookie, replacing any earlier one.
func (m *SessionManager) Issue(c *fiber.Ctx, user *domain.User) (time.Time, error) {
	token, expiresAt, err := m.tokens.Sign(domain.SessionClaims{
		SubjectID: user.ID,
		Email:     user.Email,
		Role:      user.Role,
	}, m.cfg.MaxAge())
	if err != nil {
		return time.Time{}, apperrors.NewInternalError(err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   m.cfg.MaxAgeSeconds,
		Expires:  expiresAt,
		Secure:   m.cfg.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(sessionUserKey, nil)
	return expiresAt, nil
}

// Current returns the caller of this request, or nil when there is no valid session.
// Only directory failures produce an error.
func (m *SessionManager) Current(c *fiber.Ctx) (*domain.SessionUser, error) {
	if cached, ok := c.Locals(sessionUserKey).(*domain.SessionUser); ok && cached != nil {
		return cached, nil
	}

	user, err := m.Resolve(c.UserContext(), c.Cookies(m.cfg.CookieName))
	if err != nil || user == nil {
		return nil, err
	}
	c.Locals(sessionUserKey, user)
	return user, nil
}

// Resolve maps a raw cookie value to the live account behind it. Role, name and
// activity come from the directory record, not from the token.
func (m *SessionManager) Resolve(ctx context.Context, raw string) (*domain.SessionUser, error) {
	if raw == "" {
		return nil, nil
	}
	token, err := m.tokens.Verify(raw)
	if err != nil {
		return nil, nil
	}

	user, err := m.users.GetByID(ctx, token.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewBackendUnavailable(err, nil)
	}
	if !user.Active {
		return nil, nil
	}

	return &domain.SessionUser{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// Clear expires the session cookie. It is safe to call without a session.
func (m *SessionManager) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(sessionUserKey, nil)
}
