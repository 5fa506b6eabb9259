package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/buyeth/identity-service/internal/domain"
)

type memoryEntry struct {
	user domain.User
	seq  uint64
}

type memoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*memoryEntry
	byEmail map[string]string
	seq     uint64
	hasher  PasswordHasher
	now     func() time.Time
}

// NewMemoryUserRepository returns a process-local directory. Records live as long as the
// returned value.
func NewMemoryUserRepository(hasher PasswordHasher) UserRepository {
	return &memoryUserRepository{
		byID:    make(map[string]*memoryEntry),
		byEmail: make(map[string]string),
		hasher:  hasher,
		now:     time.Now,
	}
}

func (r *memoryUserRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

func (r *memoryUserRepository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	entries := make([]*memoryEntry, 0, len(r.byID))
	for _, e := range r.byID {
		entries = append(entries, e)
	}
	users := make([]domain.User, 0, len(entries))
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].user.CreatedAt.Equal(entries[j].user.CreatedAt) {
			return entries[i].user.CreatedAt.Before(entries[j].user.CreatedAt)
		}
		return entries[i].seq < entries[j].seq
	})
	for _, e := range entries {
		users = append(users, e.user)
	}
	r.mu.RUnlock()
	return users, nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := e.user
	return &user, nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memoryUserRepository) Create(_ context.Context, in domain.CreateUserInput) (*domain.User, error) {
	// bcrypt runs before taking the lock; only check+insert is serialized.
	user, err := newUserRecord(in, r.hasher, r.now())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if in.Bootstrap && len(r.byID) > 0 {
		return nil, ErrDirectoryNotEmpty
	}
	if _, exists := r.byEmail[user.Email]; exists {
		return nil, ErrDuplicateEmail
	}

	r.seq++
	r.byID[user.ID] = &memoryEntry{user: *user, seq: r.seq}
	r.byEmail[user.Email] = user.ID

	created := *user
	return &created, nil
}

func (r *memoryUserRepository) Update(_ context.Context, id string, in domain.UpdateUserInput) (*domain.User, error) {
	hash, err := prepareUpdate(in, r.hasher)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyUpdate(&e.user, in, hash, r.now())

	updated := e.user
	return &updated, nil
}

func (r *memoryUserRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	delete(r.byID, id)
	delete(r.byEmail, e.user.Email)
	return true, nil
}
