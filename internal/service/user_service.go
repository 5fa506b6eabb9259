package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/buyeth/identity-service/internal/domain"
	"github.com/buyeth/identity-service/internal/events"
	"github.com/buyeth/identity-service/internal/repository"
	apperrors "github.com/buyeth/identity-service/pkg/util"
)

// CreateUserRequest is an admin-initiated account creation.
type CreateUserRequest struct {
	Email    string
	Password string
	Name     string
	Role     domain.Role
	Active   *bool
}

// UserService implements the admin-only directory operations. Every method checks the
// actor before touching the directory.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, dispatcher: dispatcher, logger: logger}
}

// List returns every account ordered by creation time.
func (s *UserService) List(ctx context.Context, actor *domain.SessionUser) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, mapDirectoryError(err, nil)
	}
	return users, nil
}

// Create adds an account with the requested role, defaulting to user.
func (s *UserService) Create(ctx context.Context, actor *domain.SessionUser, req CreateUserRequest) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	email, name, err := validateCredentials(Credentials{Email: req.Email, Password: req.Password, Name: req.Name})
	if err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, domain.CreateUserInput{
		Email:    email,
		Password: req.Password,
		Name:     name,
		Role:     role,
		Active:   req.Active,
	})
	if err != nil {
		return nil, mapDirectoryError(err, map[string]any{"email": email})
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventUserCreated, user.ID, events.ActorFrom(actor),
		events.UserCreatedPayload{Email: user.Email, Role: user.Role, Source: "admin"}))
	return user, nil
}

// Update applies a partial change to the account with id.
func (s *UserService) Update(ctx context.Context, actor *domain.SessionUser, id string, in domain.UpdateUserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if in.Empty() {
		return nil, apperrors.NewInvalidInput("no fields to update", nil)
	}

	var fields []string
	if in.Name != nil {
		name, err := validateName(*in.Name)
		if err != nil {
			return nil, err
		}
		in.Name = &name
		fields = append(fields, "name")
	}
	if in.Role != nil {
		if err := validateRole(*in.Role); err != nil {
			return nil, err
		}
		fields = append(fields, "role")
	}
	if in.Active != nil {
		fields = append(fields, "active")
	}
	if in.Password != nil {
		if err := validatePassword("password", *in.Password); err != nil {
			return nil, err
		}
		fields = append(fields, "password")
	}
	sort.Strings(fields)

	user, err := s.users.Update(ctx, id, in)
	if err != nil {
		return nil, mapDirectoryError(err, map[string]any{"id": id})
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventUserUpdated, user.ID, events.ActorFrom(actor),
		events.UserUpdatedPayload{Fields: fields}))
	return user, nil
}

// Delete removes the account with id, reporting false when it did not exist.
func (s *UserService) Delete(ctx context.Context, actor *domain.SessionUser, id string) (bool, error) {
	if err := requireAdmin(actor); err != nil {
		return false, err
	}

	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return false, mapDirectoryError(err, map[string]any{"id": id})
	}
	if deleted {
		publish(ctx, s.dispatcher, s.logger, events.New(events.EventUserDeleted, id, events.ActorFrom(actor), nil))
	}
	return deleted, nil
}
