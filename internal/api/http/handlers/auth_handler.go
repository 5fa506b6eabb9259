package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/buyeth/identity-service/internal/api/dto"
	"github.com/buyeth/identity-service/internal/auth"
	"github.com/buyeth/identity-service/internal/domain"
	"github.com/buyeth/identity-service/internal/service"
	apperrors "github.com/buyeth/identity-service/pkg/util"
)

// AuthHandler exposes setup, signup, login and session endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *auth.SessionManager
	gate     *auth.Gate
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, sessions *auth.SessionManager, gate *auth.Gate) *AuthHandler {
	return &AuthHandler{auth: authService, sessions: sessions, gate: gate}
}

// SetupStatus handles GET /api/setup/status.
func (h *AuthHandler) SetupStatus(c *fiber.Ctx) error {
	n, err := h.auth.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SetupStatusResponse{UserCount: n}})
}

// Bootstrap handles POST /api/admin/bootstrap.
func (h *AuthHandler) Bootstrap(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Bootstrap(c.UserContext(), service.Credentials(req))
	if err != nil {
		return err
	}
	return h.startSession(c, user, service.SessionMethodBootstrap, http.StatusCreated)
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Signup(c.UserContext(), service.Credentials(req))
	if err != nil {
		return err
	}
	return h.startSession(c, user, service.SessionMethodSignup, http.StatusCreated)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.startSession(c, user, service.SessionMethodLogin, http.StatusOK)
}

// Logout handles POST /api/auth/logout. It succeeds with or without a session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.sessions.Clear(c)
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true}})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.gate.RequireSession(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": dto.NewSessionUserResponse(user)}})
}

// ChangePassword handles POST /api/auth/password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, err := h.gate.RequireSession(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}
	if err := h.auth.ChangePassword(c.UserContext(), user, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true}})
}

func (h *AuthHandler) startSession(c *fiber.Ctx, user *domain.User, method string, status int) error {
	expiresAt, err := h.sessions.Issue(c, user)
	if err != nil {
		return err
	}
	h.auth.SessionIssued(c.UserContext(), user, method, expiresAt)

	return c.Status(status).JSON(fiber.Map{
		"data": dto.SessionResponse{User: dto.NewUserResponse(user), ExpiresAt: expiresAt.UTC()},
	})
}

func parseCredentials(c *fiber.Ctx) (dto.CredentialsRequest, error) {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewInvalidInput("invalid payload", nil)
	}
	return req, nil
}
