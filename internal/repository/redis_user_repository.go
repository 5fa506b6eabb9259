package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buyeth/identity-service/internal/domain"
)

const (
	userKeyPrefix  = "user:"
	emailKeyPrefix = "user:email:"
	userIndexKey   = "users:index"

	maxTxRetries = 8
)

// createUserScript is the uniqueness gate: the email check and all three writes run as
// one server-side step.
//
// KEYS: email key, user key, index set. ARGV: id, record JSON, "1" for bootstrap.
// Returns 1 on insert, 0 on duplicate email, -1 when bootstrap finds a non-empty index.
var createUserScript = redis.NewScript(`
if ARGV[3] == "1" and redis.call("SCARD", KEYS[3]) > 0 then
	return -1
end
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2])
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[1])
return 1
`)

// redisUserRecord is the stored JSON layout; timestamps are unix milliseconds.
type redisUserRecord struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         domain.Role `json:"role"`
	Active       bool        `json:"active"`
	PasswordHash string      `json:"passwordHash"`
	CreatedAt    int64       `json:"createdAt"`
	UpdatedAt    int64       `json:"updatedAt"`
}

type redisUserRepository struct {
	client redis.UniversalClient
	hasher PasswordHasher
	now    func() time.Time
}

// NewRedisUserRepository returns a directory stored in a Redis-compatible key-value store.
func NewRedisUserRepository(client redis.UniversalClient, hasher PasswordHasher) UserRepository {
	return &redisUserRepository{client: client, hasher: hasher, now: time.Now}
}

func userKey(id string) string {
	return userKeyPrefix + id
}

func emailKey(email string) string {
	return emailKeyPrefix + domain.NormalizeEmail(email)
}

func (r *redisUserRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, userIndexKey).Result()
	if err != nil {
		return 0, unavailable("redis", "count", err)
	}
	return int(n), nil
}

func (r *redisUserRepository) List(ctx context.Context) ([]domain.User, error) {
	ids, err := r.client.SMembers(ctx, userIndexKey).Result()
	if err != nil {
		return nil, unavailable("redis", "list", err)
	}
	if len(ids) == 0 {
		return []domain.User{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("redis", "list", err)
	}

	users := make([]domain.User, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		user, err := decodeUserRecord([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		users = append(users, *user)
	}
	sort.SliceStable(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (r *redisUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	raw, err := r.client.Get(ctx, userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("redis", "get", err)
	}
	return decodeUserRecord(raw)
}

func (r *redisUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, err := r.client.Get(ctx, emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("redis", "get by email", err)
	}
	return r.GetByID(ctx, id)
}

func (r *redisUserRepository) Create(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	user, err := newUserRecord(in, r.hasher, r.now().Truncate(time.Millisecond))
	if err != nil {
		return nil, err
	}
	payload, err := encodeUserRecord(user)
	if err != nil {
		return nil, err
	}

	bootstrap := "0"
	if in.Bootstrap {
		bootstrap = "1"
	}
	keys := []string{emailKey(user.Email), userKey(user.ID), userIndexKey}
	res, err := createUserScript.Run(ctx, r.client, keys, user.ID, payload, bootstrap).Int()
	if err != nil {
		return nil, unavailable("redis", "create", err)
	}

	switch res {
	case 1:
		return user, nil
	case 0:
		return nil, ErrDuplicateEmail
	case -1:
		return nil, ErrDirectoryNotEmpty
	default:
		return nil, fmt.Errorf("redis create: unexpected script result %d", res)
	}
}

func (r *redisUserRepository) Update(ctx context.Context, id string, in domain.UpdateUserInput) (*domain.User, error) {
	hash, err := prepareUpdate(in, r.hasher)
	if err != nil {
		return nil, err
	}

	key := userKey(id)
	var updated *domain.User
	err = r.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		user, err := decodeUserRecord(raw)
		if err != nil {
			return err
		}
		applyUpdate(user, in, hash, r.now().Truncate(time.Millisecond))
		payload, err := encodeUserRecord(user)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err == nil {
			updated = user
		}
		return err
	}, key)
	if err != nil {
		return nil, unavailable("redis", "update", err)
	}
	return updated, nil
}

func (r *redisUserRepository) Delete(ctx context.Context, id string) (bool, error) {
	key := userKey(id)
	deleted := false
	err := r.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		user, err := decodeUserRecord(raw)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, emailKey(user.Email))
			pipe.SRem(ctx, userIndexKey, id)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}, key)
	if err != nil {
		return false, unavailable("redis", "delete", err)
	}
	return deleted, nil
}

// watch runs fn under WATCH keys, retrying when a concurrent writer invalidates the
// transaction.
func (r *redisUserRepository) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%w: transaction retries exhausted", ErrBackendUnavailable)
}

func encodeUserRecord(u *domain.User) (string, error) {
	b, err := json.Marshal(redisUserRecord{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Active:       u.Active,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UnixMilli(),
		UpdatedAt:    u.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeUserRecord(raw []byte) (*domain.User, error) {
	var rec redisUserRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &domain.User{
		ID:           rec.ID,
		Email:        rec.Email,
		Name:         rec.Name,
		Role:         rec.Role,
		Active:       rec.Active,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    time.UnixMilli(rec.CreatedAt),
		UpdatedAt:    time.UnixMilli(rec.UpdatedAt),
	}, nil
}
