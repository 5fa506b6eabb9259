package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/buyeth/identity-service/internal/domain"
	"github.com/buyeth/identity-service/internal/events"
	"github.com/buyeth/identity-service/internal/repository"
	apperrors "github.com/buyeth/identity-service/pkg/util"
)

func TestAuthService_StatusCountsUsers(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	n, err := f.auth.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.bootstrapAdmin(t)
	n, err = f.auth.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAuthService_BootstrapThenSignupIsUser(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	admin, err := f.auth.Bootstrap(ctx, Credentials{Email: " Root@X.com ", Password: "rootpass1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, admin.Active)
	assert.Equal(t, "root@x.com", admin.Email)
	assert.Equal(t, "Admin", admin.Name)

	user, err := f.auth.Signup(ctx, Credentials{Email: "u@x.com", Password: "userpass1", Name: "U"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)

	_, err = f.auth.Bootstrap(ctx, Credentials{Email: "late@x.com", Password: "latepass1"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAlreadyInitialized))

	assert.Equal(t, []events.EventType{
		events.EventDirectoryBootstrapped,
		events.EventUserCreated,
		events.EventUserCreated,
	}, f.recorder.types())
}

func TestAuthService_ConcurrentBootstrapCreatesOneAdmin(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.auth.Bootstrap(ctx, Credentials{Email: fmt.Sprintf("admin%d@x.com", i), Password: "rootpass1"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.True(t, apperrors.IsCode(err, apperrors.CodeAlreadyInitialized) ||
				apperrors.IsCode(err, apperrors.CodeDuplicateEmail), "unexpected error %v", err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	n, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAuthService_SignupRules(t *testing.T) {
	ctx := context.Background()

	t.Run("empty directory signup becomes admin even when disabled", func(t *testing.T) {
		f := newFixture(t, false)
		u, err := f.auth.Signup(ctx, Credentials{Email: "first@x.com", Password: "firstpass"})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, u.Role)
	})

	t.Run("disabled after first account", func(t *testing.T) {
		f := newFixture(t, false)
		f.bootstrapAdmin(t)
		_, err := f.auth.Signup(ctx, Credentials{Email: "second@x.com", Password: "secondpass"})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeSignupDisabled))
		n, _ := f.users.Count(ctx)
		assert.Equal(t, 1, n)
	})

	t.Run("duplicate email in any case", func(t *testing.T) {
		f := newFixture(t, true)
		f.bootstrapAdmin(t)
		_, err := f.auth.Signup(ctx, Credentials{Email: "ROOT@x.com ", Password: "another1"})
		assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicateEmail))
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, true)
		cases := []Credentials{
			{Email: "", Password: "longenough"},
			{Email: "not-an-email", Password: "longenough"},
			{Email: "Name <a@x.com>", Password: "longenough"},
			{Email: "a@x.com", Password: "short"},
			{Email: "a@x.com", Password: strings.Repeat("x", 73)},
			{Email: "a@x.com", Password: "longenough", Name: strings.Repeat("n", 121)},
		}
		for _, in := range cases {
			_, err := f.auth.Signup(ctx, in)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput), "input %+v: %v", in, err)
		}
		n, _ := f.users.Count(ctx)
		assert.Zero(t, n)
	})
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	admin := f.bootstrapAdmin(t)

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.auth.Login(ctx, "root@x.com", "wrongpass")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	})

	t.Run("unknown email gets the same error", func(t *testing.T) {
		_, err := f.auth.Login(ctx, "nobody@x.com", "rootpass1")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	})

	t.Run("correct credentials with email variant", func(t *testing.T) {
		u, err := f.auth.Login(ctx, "  ROOT@x.com", "rootpass1")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, u.ID)
		assert.Equal(t, domain.RoleAdmin, u.Role)
	})

	t.Run("missing input", func(t *testing.T) {
		_, err := f.auth.Login(ctx, "", "")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	})

	t.Run("inactive account rejected generically", func(t *testing.T) {
		inactive := false
		u, err := f.admin.Create(ctx, sessionOf(admin), CreateUserRequest{Email: "off@x.com", Password: "offpass12", Active: &inactive})
		require.NoError(t, err)
		require.False(t, u.Active)

		_, err = f.auth.Login(ctx, "off@x.com", "offpass12")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	})

	assert.Contains(t, f.recorder.types(), events.EventLoginFailed)
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	admin := f.bootstrapAdmin(t)
	actor := sessionOf(admin)

	err := f.auth.ChangePassword(ctx, actor, "wrongpass", "newpass123")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	err = f.auth.ChangePassword(ctx, actor, "rootpass1", "short")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	err = f.auth.ChangePassword(ctx, nil, "rootpass1", "newpass123")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	require.NoError(t, f.auth.ChangePassword(ctx, actor, "rootpass1", "newpass123"))

	_, err = f.auth.Login(ctx, "root@x.com", "rootpass1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	_, err = f.auth.Login(ctx, "root@x.com", "newpass123")
	assert.NoError(t, err)
}

func TestAuthService_BackendUnavailable(t *testing.T) {
	users := &mockUserRepository{}
	down := fmt.Errorf("%w: dial tcp: connection refused", repository.ErrBackendUnavailable)
	users.On("Count", mock.Anything).Return(0, down)
	users.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, down)
	f := newFixtureWithRepo(t, users, true)
	ctx := context.Background()

	_, err := f.auth.Status(ctx)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBackendUnavailable))

	_, err = f.auth.Signup(ctx, Credentials{Email: "a@x.com", Password: "longenough"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBackendUnavailable))

	_, err = f.auth.Login(ctx, "a@x.com", "longenough")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBackendUnavailable))
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.Retryable())

	users.AssertExpectations(t)
	assert.Empty(t, f.recorder.types())
}
