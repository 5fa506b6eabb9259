package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/buyeth/identity-service/internal/api/dto"
	"github.com/buyeth/identity-service/internal/auth"
	"github.com/buyeth/identity-service/internal/service"
	apperrors "github.com/buyeth/identity-service/pkg/util"
)

// AdminUsersHandler exposes directory management for admins.
type AdminUsersHandler struct {
	users *service.UserService
	gate  *auth.Gate
}

// NewAdminUsersHandler constructs handler.
func NewAdminUsersHandler(users *service.UserService, gate *auth.Gate) *AdminUsersHandler {
	return &AdminUsersHandler{users: users, gate: gate}
}

// List handles GET /api/admin/users.
func (h *AdminUsersHandler) List(c *fiber.Ctx) error {
	actor, err := h.gate.RequireAdmin(c)
	if err != nil {
		return err
	}
	users, err := h.users.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"users": dto.NewUserListResponse(users)}})
}

// Create handles POST /api/admin/users.
func (h *AdminUsersHandler) Create(c *fiber.Ctx) error {
	actor, err := h.gate.RequireAdmin(c)
	if err != nil {
		return err
	}
	var req dto.AdminCreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	user, err := h.users.Create(c.UserContext(), actor, service.CreateUserRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
		Active:   req.Active,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"user": dto.NewUserResponse(user)}})
}

// Update handles PATCH /api/admin/users/:id.
func (h *AdminUsersHandler) Update(c *fiber.Ctx) error {
	actor, err := h.gate.RequireAdmin(c)
	if err != nil {
		return err
	}
	var req dto.AdminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	user, err := h.users.Update(c.UserContext(), actor, c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": dto.NewUserResponse(user)}})
}

// Delete handles DELETE /api/admin/users/:id.
func (h *AdminUsersHandler) Delete(c *fiber.Ctx) error {
	actor, err := h.gate.RequireAdmin(c)
	if err != nil {
		return err
	}
	deleted, err := h.users.Delete(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": deleted}})
}
