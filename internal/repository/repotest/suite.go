// Package repotest holds the behavioural contract every user directory backend must pass.
package repotest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/buyeth/identity-service/internal/domain"
	"github.com/buyeth/identity-service/internal/repository"
)

// DirectorySuite runs the directory contract against the repository returned by NewRepo.
// NewRepo is called before each test and must return an empty directory.
type DirectorySuite struct {
	suite.Suite

	NewRepo func() repository.UserRepository

	repo repository.UserRepository
	ctx  context.Context
}

func (s *DirectorySuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = s.NewRepo()
}

func (s *DirectorySuite) create(email string) *domain.User {
	u, err := s.repo.Create(s.ctx, domain.CreateUserInput{Email: email, Password: "pw123456"})
	s.Require().NoError(err)
	return u
}

func (s *DirectorySuite) count() int {
	n, err := s.repo.Count(s.ctx)
	s.Require().NoError(err)
	return n
}

func (s *DirectorySuite) TestEmptyDirectory() {
	s.Equal(0, s.count())

	users, err := s.repo.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(users)

	_, err = s.repo.GetByID(s.ctx, "missing")
	s.ErrorIs(err, repository.ErrNotFound)

	_, err = s.repo.GetByEmail(s.ctx, "missing@x.com")
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *DirectorySuite) TestCreateNormalizesAndDefaults() {
	u, err := s.repo.Create(s.ctx, domain.CreateUserInput{
		Email:    "  Alice@Example.COM ",
		Password: "pw123456",
		Name:     " Alice ",
	})
	s.Require().NoError(err)

	s.NotEmpty(u.ID)
	s.Equal("alice@example.com", u.Email)
	s.Equal("Alice", u.Name)
	s.Equal(domain.RoleUser, u.Role)
	s.True(u.Active)
	s.NotEmpty(u.PasswordHash)
	s.NotEqual("pw123456", u.PasswordHash)
	s.False(u.CreatedAt.IsZero())
	s.True(u.UpdatedAt.Equal(u.CreatedAt))

	byID, err := s.repo.GetByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Email, byID.Email)
	s.Equal(u.PasswordHash, byID.PasswordHash)

	byEmail, err := s.repo.GetByEmail(s.ctx, "ALICE@example.com  ")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)
}

func (s *DirectorySuite) TestCreateHonoursRoleAndActive() {
	inactive := false
	u, err := s.repo.Create(s.ctx, domain.CreateUserInput{
		Email:    "ops@x.com",
		Password: "pw123456",
		Role:     domain.RoleAdmin,
		Active:   &inactive,
	})
	s.Require().NoError(err)
	s.Equal(domain.RoleAdmin, u.Role)
	s.False(u.Active)
}

func (s *DirectorySuite) TestCreateRejectsInvalidInput() {
	cases := []domain.CreateUserInput{
		{Email: "", Password: "pw123456"},
		{Email: "   ", Password: "pw123456"},
		{Email: "a@x.com", Password: ""},
		{Email: "a@x.com", Password: strings.Repeat("p", 100)},
		{Email: "a@x.com", Password: "pw123456", Role: domain.Role("root")},
	}
	for _, in := range cases {
		_, err := s.repo.Create(s.ctx, in)
		s.ErrorIs(err, repository.ErrInvalidInput, "input %+v", in)
	}
	s.Equal(0, s.count())
}

func (s *DirectorySuite) TestDuplicateEmailVariants() {
	s.create("dup@x.com")

	for _, variant := range []string{"dup@x.com", "DUP@X.COM", "  dup@x.com", "Dup@x.com\t"} {
		_, err := s.repo.Create(s.ctx, domain.CreateUserInput{Email: variant, Password: "pw123456"})
		s.ErrorIs(err, repository.ErrDuplicateEmail, "variant %q", variant)
	}
	s.Equal(1, s.count())
}

func (s *DirectorySuite) TestConcurrentCreateSameEmail() {
	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := "race@x.com"
			if i%2 == 1 {
				email = "  RACE@x.com"
			}
			_, err := s.repo.Create(s.ctx, domain.CreateUserInput{Email: email, Password: "pw123456"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, repository.ErrDuplicateEmail):
				dupes++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(workers-1, dupes)
	s.Equal(1, s.count())
}

func (s *DirectorySuite) TestBootstrapCreateRequiresEmptyDirectory() {
	first, err := s.repo.Create(s.ctx, domain.CreateUserInput{
		Email: "admin@x.com", Password: "pw123456", Role: domain.RoleAdmin, Bootstrap: true,
	})
	s.Require().NoError(err)
	s.Equal(domain.RoleAdmin, first.Role)

	_, err = s.repo.Create(s.ctx, domain.CreateUserInput{
		Email: "other@x.com", Password: "pw123456", Role: domain.RoleAdmin, Bootstrap: true,
	})
	s.ErrorIs(err, repository.ErrDirectoryNotEmpty)
	s.Equal(1, s.count())
}

func (s *DirectorySuite) TestConcurrentBootstrapDistinctEmails() {
	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.repo.Create(s.ctx, domain.CreateUserInput{
				Email:     string(rune('a'+i)) + "@x.com",
				Password:  "pw123456",
				Role:      domain.RoleAdmin,
				Bootstrap: true,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, repository.ErrDirectoryNotEmpty):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(workers-1, rejected)
	s.Equal(1, s.count())
}

func (s *DirectorySuite) TestListOrderedByCreation() {
	var want []string
	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		want = append(want, s.create(email).ID)
		time.Sleep(2 * time.Millisecond)
	}

	users, err := s.repo.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 3)
	for i, u := range users {
		s.Equal(want[i], u.ID)
	}
}

func (s *DirectorySuite) TestUpdatePartial() {
	u := s.create("upd@x.com")
	time.Sleep(2 * time.Millisecond)

	name := "Renamed"
	updated, err := s.repo.Update(s.ctx, u.ID, domain.UpdateUserInput{Name: &name})
	s.Require().NoError(err)
	s.Equal("Renamed", updated.Name)
	s.Equal(u.Role, updated.Role)
	s.Equal(u.Active, updated.Active)
	s.Equal(u.PasswordHash, updated.PasswordHash)
	s.Equal(u.Email, updated.Email)
	s.True(updated.CreatedAt.Equal(u.CreatedAt))
	s.True(updated.UpdatedAt.After(u.UpdatedAt), "updatedAt must advance")

	role := domain.RoleAdmin
	inactive := false
	password := "newpass99"
	updated2, err := s.repo.Update(s.ctx, u.ID, domain.UpdateUserInput{Role: &role, Active: &inactive, Password: &password})
	s.Require().NoError(err)
	s.Equal(domain.RoleAdmin, updated2.Role)
	s.False(updated2.Active)
	s.NotEqual(u.PasswordHash, updated2.PasswordHash)
	s.Equal("Renamed", updated2.Name)
	s.False(updated2.UpdatedAt.Before(updated.UpdatedAt))

	stored, err := s.repo.GetByEmail(s.ctx, "upd@x.com")
	s.Require().NoError(err)
	s.Equal(updated2.PasswordHash, stored.PasswordHash)
	s.False(stored.Active)
}

func (s *DirectorySuite) TestUpdateErrors() {
	name := "x"
	_, err := s.repo.Update(s.ctx, "missing", domain.UpdateUserInput{Name: &name})
	s.ErrorIs(err, repository.ErrNotFound)

	u := s.create("bad@x.com")
	role := domain.Role("superuser")
	_, err = s.repo.Update(s.ctx, u.ID, domain.UpdateUserInput{Role: &role})
	s.ErrorIs(err, repository.ErrInvalidInput)

	empty := ""
	_, err = s.repo.Update(s.ctx, u.ID, domain.UpdateUserInput{Password: &empty})
	s.ErrorIs(err, repository.ErrInvalidInput)
}

func (s *DirectorySuite) TestDelete() {
	s.create("keep@x.com")
	u := s.create("gone@x.com")

	ok, err := s.repo.Delete(s.ctx, "missing")
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(2, s.count())

	ok, err = s.repo.Delete(s.ctx, u.ID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(1, s.count())

	_, err = s.repo.GetByID(s.ctx, u.ID)
	s.ErrorIs(err, repository.ErrNotFound)
	_, err = s.repo.GetByEmail(s.ctx, "gone@x.com")
	s.ErrorIs(err, repository.ErrNotFound)

	ok, err = s.repo.Delete(s.ctx, u.ID)
	s.Require().NoError(err)
	s.False(ok)

	// the email index entry went with the record
	s.create("gone@x.com")
	s.Equal(2, s.count())
}
