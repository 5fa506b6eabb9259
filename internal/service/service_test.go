package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/buyeth/identity-service/internal/auth"
	"github.com/buyeth/identity-service/internal/config"
	"github.com/buyeth/identity-service/internal/domain"
	"github.com/buyeth/identity-service/internal/events"
	"github.com/buyeth/identity-service/internal/repository"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) Create(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	args := m.Called(ctx, in)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, id string, in domain.UpdateUserInput) (*domain.User, error) {
	args := m.Called(ctx, id, in)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// eventRecorder collects every published event type.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newEventRecorder(d events.Dispatcher) *eventRecorder {
	r := &eventRecorder{}
	for _, t := range events.AllEventTypes {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
	return r
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	users    repository.UserRepository
	hasher   *auth.Hasher
	auth     *AuthService
	admin    *UserService
	recorder *eventRecorder
}

func newFixture(t *testing.T, allowPublicSignup bool) *fixture {
	t.Helper()
	hasher := auth.NewHasher(bcrypt.MinCost)
	return newFixtureWithRepo(t, repository.NewMemoryUserRepository(hasher), allowPublicSignup)
}

func newFixtureWithRepo(t *testing.T, users repository.UserRepository, allowPublicSignup bool) *fixture {
	t.Helper()
	hasher := auth.NewHasher(bcrypt.MinCost)
	dispatcher := events.NewInMemoryDispatcher()
	recorder := newEventRecorder(dispatcher)

	authSvc, err := NewAuthService(config.AuthConfig{AllowPublicSignup: allowPublicSignup}, AuthDependencies{
		UserRepo:   users,
		Hasher:     hasher,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)

	return &fixture{
		users:    users,
		hasher:   hasher,
		auth:     authSvc,
		admin:    NewUserService(users, dispatcher, zap.NewNop()),
		recorder: recorder,
	}
}

func sessionOf(u *domain.User) *domain.SessionUser {
	return &domain.SessionUser{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

func (f *fixture) bootstrapAdmin(t *testing.T) *domain.User {
	t.Helper()
	admin, err := f.auth.Bootstrap(context.Background(), Credentials{Email: "root@x.com", Password: "rootpass1"})
	require.NoError(t, err)
	return admin
}
