package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/buyeth/identity-service/internal/auth"
	"github.com/buyeth/identity-service/internal/domain"
	"github.com/buyeth/identity-service/internal/events"
	"github.com/buyeth/identity-service/internal/repository"
	apperrors "github.com/buyeth/identity-service/pkg/util"
)

const (
	minPasswordChars = 8
	maxNameChars     = 120
)

// validateEmail returns the normalized address or INVALID_INPUT.
func validateEmail(raw string) (string, error) {
	email := domain.NormalizeEmail(raw)
	if email == "" {
		return "", apperrors.NewInvalidInput("email is required", map[string]any{"field": "email"})
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", apperrors.NewInvalidInput("email is not a valid address", map[string]any{"field": "email"})
	}
	return email, nil
}

func validatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < minPasswordChars {
		return apperrors.NewInvalidInput("password must be at least 8 characters", map[string]any{"field": field})
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperrors.NewInvalidInput("password must be at most 72 bytes", map[string]any{"field": field})
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameChars {
		return "", apperrors.NewInvalidInput("name is too long", map[string]any{"field": "name"})
	}
	return name, nil
}

func validateRole(role domain.Role) error {
	if !role.Valid() {
		return apperrors.NewInvalidInput("role must be admin or user", map[string]any{"field": "role"})
	}
	return nil
}

// mapDirectoryError turns repository sentinels into domain errors.
func mapDirectoryError(err error, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicateEmail):
		email, _ := details["email"].(string)
		return apperrors.NewDuplicateEmail(email)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("user", details)
	case errors.Is(err, repository.ErrDirectoryNotEmpty):
		return apperrors.NewAlreadyInitialized()
	case errors.Is(err, repository.ErrInvalidInput):
		return apperrors.NewInvalidInput(err.Error(), nil)
	case errors.Is(err, repository.ErrBackendUnavailable):
		return apperrors.NewBackendUnavailable(err, nil)
	default:
		return apperrors.NewInternalError(err)
	}
}

func requireAdmin(actor *domain.SessionUser) error {
	if !actor.IsAdmin() {
		return apperrors.NewUnauthorized("unauthorized")
	}
	return nil
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}
