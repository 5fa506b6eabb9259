package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buyeth/identity-service/internal/domain"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "h:" + password, nil
}

func frozenClock() func() time.Time {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestUpdatedAtAdvancesWithinSameInstant(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	memory := NewMemoryUserRepository(plainHasher{}).(*memoryUserRepository)
	memory.now = frozenClock()
	kv := NewRedisUserRepository(client, plainHasher{}).(*redisUserRepository)
	kv.now = frozenClock()

	for name, repo := range map[string]UserRepository{"memory": memory, "redis": kv} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u, err := repo.Create(ctx, domain.CreateUserInput{Email: "clock@x.com", Password: "pw123456"})
			require.NoError(t, err)

			first, err := repo.Update(ctx, u.ID, domain.UpdateUserInput{Name: ptr("one")})
			require.NoError(t, err)
			second, err := repo.Update(ctx, u.ID, domain.UpdateUserInput{Name: ptr("two")})
			require.NoError(t, err)

			assert.True(t, first.UpdatedAt.After(u.UpdatedAt))
			assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

			stored, err := repo.GetByID(ctx, u.ID)
			require.NoError(t, err)
			assert.True(t, stored.UpdatedAt.Equal(second.UpdatedAt))
			assert.True(t, stored.CreatedAt.Equal(u.CreatedAt))
		})
	}
}

func TestApplyUpdateUsesClockWhenAhead(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	user := &domain.User{UpdatedAt: base}

	applyUpdate(user, domain.UpdateUserInput{Name: ptr(" Bob ")}, "", base.Add(time.Second))
	assert.Equal(t, "Bob", user.Name)
	assert.True(t, user.UpdatedAt.Equal(base.Add(time.Second)))

	applyUpdate(user, domain.UpdateUserInput{}, "", base)
	assert.True(t, user.UpdatedAt.Equal(base.Add(time.Second+updatedAtStep)))
}

func ptr[T any](v T) *T {
	return &v
}
