package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buyeth/identity-service/internal/domain"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrDirectoryNotEmpty  = errors.New("directory already initialized")
	ErrInvalidInput       = errors.New("invalid user input")
	ErrBackendUnavailable = errors.New("user directory backend unavailable")
)

// PasswordHasher produces the stored digest for a plaintext password.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// UserRepository is the user directory. Implementations are safe for concurrent use and
// keep the id and email indices consistent across every mutation.
type UserRepository interface {
	Count(ctx context.Context) (int, error)
	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail normalizes the address before lookup.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create fails with ErrDuplicateEmail when the normalized email is taken, and with
	// ErrDirectoryNotEmpty when in.Bootstrap is set and any user exists.
	Create(ctx context.Context, in domain.CreateUserInput) (*domain.User, error)
	// Update applies the non-nil fields of in and advances UpdatedAt.
	Update(ctx context.Context, id string, in domain.UpdateUserInput) (*domain.User, error)
	// Delete reports false when id is unknown.
	Delete(ctx context.Context, id string) (bool, error)
}

// newUserRecord validates in and builds the record to insert, hashing the password.
func newUserRecord(in domain.CreateUserInput, hasher PasswordHasher, now time.Time) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidInput)
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	hash, err := hashPassword(hasher, in.Password)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         domain.NormalizeName(in.Name),
		Role:         role,
		Active:       active,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// prepareUpdate validates in and hashes the new password when one is given.
func prepareUpdate(in domain.UpdateUserInput, hasher PasswordHasher) (string, error) {
	if in.Role != nil && !in.Role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *in.Role)
	}
	if in.Password == nil {
		return "", nil
	}
	return hashPassword(hasher, *in.Password)
}

// updatedAtStep is the smallest advance every backend can store.
const updatedAtStep = time.Millisecond

// applyUpdate merges in into user. UpdatedAt always advances, by updatedAtStep when the
// clock has not moved past the stored value.
func applyUpdate(user *domain.User, in domain.UpdateUserInput, passwordHash string, now time.Time) {
	if in.Name != nil {
		user.Name = domain.NormalizeName(*in.Name)
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.Active != nil {
		user.Active = *in.Active
	}
	if passwordHash != "" {
		user.PasswordHash = passwordHash
	}
	if now.After(user.UpdatedAt) {
		user.UpdatedAt = now
	} else {
		user.UpdatedAt = user.UpdatedAt.Add(updatedAtStep)
	}
}

func hashPassword(hasher PasswordHasher, password string) (string, error) {
	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return hash, nil
}

// unavailable marks err as a backend connectivity failure unless it is already a
// directory sentinel.
func unavailable(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrDuplicateEmail, ErrDirectoryNotEmpty, ErrInvalidInput, ErrBackendUnavailable} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %s %s: %w", ErrBackendUnavailable, backend, op, err)
}
