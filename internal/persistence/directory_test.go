package persistence

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/buyeth/identity-service/internal/auth"
	"github.com/buyeth/identity-service/internal/config"
	"github.com/buyeth/identity-service/internal/domain"
	"github.com/buyeth/identity-service/internal/repository"
	"github.com/buyeth/identity-service/internal/repository/repotest"
)

func TestOpenDirectory_Memory(t *testing.T) {
	dir, err := OpenDirectory(context.Background(), config.DirectoryConfig{Kind: config.BackendMemory}, auth.NewHasher(bcrypt.MinCost), zap.NewNop())
	require.NoError(t, err)
	defer dir.Close()

	assert.Equal(t, config.BackendMemory, dir.Kind)
	assert.NoError(t, dir.Ping(context.Background()))

	n, err := dir.Users.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenDirectory_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.DirectoryConfig{Kind: config.BackendRedis, KV: config.KVConfig{URL: "redis://" + mr.Addr()}}

	dir, err := OpenDirectory(context.Background(), cfg, auth.NewHasher(bcrypt.MinCost), zap.NewNop())
	require.NoError(t, err)
	defer dir.Close()

	_, err = dir.Users.Create(context.Background(), domain.CreateUserInput{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("user:email:a@x.com"))
	assert.NoError(t, dir.Ping(context.Background()))
}

func TestOpenDirectory_Unknown(t *testing.T) {
	_, err := OpenDirectory(context.Background(), config.DirectoryConfig{Kind: "etcd"}, auth.NewHasher(bcrypt.MinCost), zap.NewNop())
	assert.Error(t, err)
}

func TestMigrationFiles(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "migrations/0001_users.sql", files[0])
}

// TestPostgresDirectoryContract needs a disposable database:
// RUN_DIRECTORY_INTEGRATION=true POSTGRES_TEST_DSN=postgres://... go test ./internal/persistence
func TestPostgresDirectoryContract(t *testing.T) {
	_ = godotenv.Overload("../../.env.test")
	if os.Getenv("RUN_DIRECTORY_INTEGRATION") != "true" {
		t.Skip("set RUN_DIRECTORY_INTEGRATION=true to run postgres integration tests")
	}
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	pg, err := NewPostgres(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 10}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	require.NoError(t, RunMigrations(ctx, pg.Pool, zap.NewNop()))

	hasher := auth.NewHasher(bcrypt.MinCost)
	suite.Run(t, &repotest.DirectorySuite{
		NewRepo: func() repository.UserRepository {
			_, err := pg.Pool.Exec(ctx, `TRUNCATE users`)
			require.NoError(t, err)
			return repository.NewPostgresUserRepository(pg.Pool, hasher)
		},
	})
}
