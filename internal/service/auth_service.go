package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/buyeth/identity-service/internal/auth"
	"github.com/buyeth/identity-service/internal/config"
	"github.com/buyeth/identity-service/internal/domain"
	"github.com/buyeth/identity-service/internal/events"
	"github.com/buyeth/identity-service/internal/repository"
	apperrors "github.com/buyeth/identity-service/pkg/util"
)

const (
	defaultAdminName = "Admin"

	// timingPassword is hashed once so logins for unknown emails cost one bcrypt compare.
	timingPassword = "timing-equalizer-password"
)

// Session issuance methods recorded in audit events.
const (
	SessionMethodLogin     = "login"
	SessionMethodSignup    = "signup"
	SessionMethodBootstrap = "bootstrap"
)

// Credentials is the email/password/name triple accepted by bootstrap, signup and login.
type Credentials struct {
	Email    string
	Password string
	Name     string
}

// AuthService coordinates bootstrap, signup, login and password changes.
type AuthService struct {
	users             repository.UserRepository
	hasher            *auth.Hasher
	dispatcher        events.Dispatcher
	logger            *zap.Logger
	allowPublicSignup bool
	timingHash        string
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Hasher     *auth.Hasher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) (*AuthService, error) {
	timingHash, err := deps.Hasher.Hash(timingPassword)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:             deps.UserRepo,
		hasher:            deps.Hasher,
		dispatcher:        deps.Dispatcher,
		logger:            logger,
		allowPublicSignup: cfg.AllowPublicSignup,
		timingHash:        timingHash,
	}, nil
}

// Status reports how many accounts exist. Callers use it to decide whether bootstrap is open.
func (s *AuthService) Status(ctx context.Context) (int, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, mapDirectoryError(err, nil)
	}
	return n, nil
}

// Bootstrap creates the first account as an active admin. Once any account exists it
// fails with ALREADY_INITIALIZED; concurrent callers are settled by the directory.
func (s *AuthService) Bootstrap(ctx context.Context, in Credentials) (*domain.User, error) {
	email, name, err := validateCredentials(in)
	if err != nil {
		return nil, err
	}

	n, err := s.users.Count(ctx)
	if err != nil {
		return nil, mapDirectoryError(err, nil)
	}
	if n > 0 {
		return nil, apperrors.NewAlreadyInitialized()
	}

	user, err := s.createFirstAdmin(ctx, email, in.Password, name)
	if err != nil {
		return nil, mapDirectoryError(err, map[string]any{"email": email})
	}
	return user, nil
}

// Signup registers an account. On an empty directory the account becomes the first admin;
// otherwise it needs public signup enabled and always gets the user role.
func (s *AuthService) Signup(ctx context.Context, in Credentials) (*domain.User, error) {
	email, name, err := validateCredentials(in)
	if err != nil {
		return nil, err
	}

	n, err := s.users.Count(ctx)
	if err != nil {
		return nil, mapDirectoryError(err, nil)
	}
	if n == 0 {
		user, err := s.createFirstAdmin(ctx, email, in.Password, name)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrDirectoryNotEmpty) {
			return nil, mapDirectoryError(err, map[string]any{"email": email})
		}
	}

	if !s.allowPublicSignup {
		return nil, apperrors.NewSignupDisabled()
	}

	user, err := s.users.Create(ctx, domain.CreateUserInput{
		Email:    email,
		Password: in.Password,
		Name:     name,
		Role:     domain.RoleUser,
	})
	if err != nil {
		return nil, mapDirectoryError(err, map[string]any{"email": email})
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventUserCreated, user.ID, events.Actor{},
		events.UserCreatedPayload{Email: user.Email, Role: user.Role, Source: "signup"}))
	return user, nil
}

func (s *AuthService) createFirstAdmin(ctx context.Context, email, password, name string) (*domain.User, error) {
	if name == "" {
		name = defaultAdminName
	}
	active := true
	user, err := s.users.Create(ctx, domain.CreateUserInput{
		Email:     email,
		Password:  password,
		Name:      name,
		Role:      domain.RoleAdmin,
		Active:    &active,
		Bootstrap: true,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("directory bootstrapped", zap.String("user_id", user.ID))
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventDirectoryBootstrapped, user.ID, events.Actor{}, nil))
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventUserCreated, user.ID, events.Actor{},
		events.UserCreatedPayload{Email: user.Email, Role: user.Role, Source: "bootstrap"}))
	return user, nil
}

// Login checks credentials. Unknown email, wrong password and disabled accounts all fail
// with the same UNAUTHORIZED error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" || password == "" {
		return nil, apperrors.NewInvalidInput("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, mapDirectoryError(err, nil)
		}
		s.hasher.Verify(password, s.timingHash)
		return nil, s.loginFailed(ctx, normalized)
	}

	if !s.hasher.Verify(password, user.PasswordHash) || !user.Active {
		return nil, s.loginFailed(ctx, normalized)
	}
	return user, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string) error {
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventLoginFailed, "", events.Actor{},
		events.LoginFailedPayload{Email: email}))
	return apperrors.NewUnauthorized("invalid credentials")
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.SessionUser, currentPassword, newPassword string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("unauthorized")
	}
	if err := validatePassword("newPassword", newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("unauthorized")
		}
		return mapDirectoryError(err, nil)
	}
	if !user.Active || !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	if _, err := s.users.Update(ctx, user.ID, domain.UpdateUserInput{Password: &newPassword}); err != nil {
		return mapDirectoryError(err, map[string]any{"id": user.ID})
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventUserUpdated, user.ID, events.ActorFrom(actor),
		events.UserUpdatedPayload{Fields: []string{"password"}}))
	return nil
}

// SessionIssued records that a session cookie was handed out.
func (s *AuthService) SessionIssued(ctx context.Context, user *domain.User, method string, expiresAt time.Time) {
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventSessionIssued, user.ID, events.Actor{UserID: user.ID, Role: user.Role},
		events.SessionIssuedPayload{Method: method, ExpiresAt: expiresAt}))
}

func validateCredentials(in Credentials) (string, string, error) {
	email, err := validateEmail(in.Email)
	if err != nil {
		return "", "", err
	}
	if err := validatePassword("password", in.Password); err != nil {
		return "", "", err
	}
	name, err := validateName(in.Name)
	if err != nil {
		return "", "", err
	}
	return email, name, nil
}
