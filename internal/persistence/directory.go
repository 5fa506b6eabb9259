package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/buyeth/identity-service/internal/config"
	"github.com/buyeth/identity-service/internal/repository"
)

// Directory is the user directory chosen at startup together with its connection.
type Directory struct {
	Kind  config.BackendKind
	Users repository.UserRepository

	ping  func(context.Context) error
	close func()
}

// OpenDirectory builds the directory backend named by cfg.Kind. The choice is made once
// here and never revisited while the process runs.
func OpenDirectory(ctx context.Context, cfg config.DirectoryConfig, hasher repository.PasswordHasher, logger *zap.Logger) (*Directory, error) {
	switch cfg.Kind {
	case config.BackendRedis:
		kv, err := NewRedis(ctx, cfg.KV, logger)
		if err != nil {
			return nil, fmt.Errorf("open redis directory: %w", err)
		}
		logger.Info("user directory backend selected", zap.String("backend", string(cfg.Kind)))
		return &Directory{
			Kind:  cfg.Kind,
			Users: repository.NewRedisUserRepository(kv.Client, hasher),
			ping:  kv.Ping,
			close: kv.Close,
		}, nil

	case config.BackendPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres directory: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		logger.Info("user directory backend selected", zap.String("backend", string(cfg.Kind)))
		return &Directory{
			Kind:  cfg.Kind,
			Users: repository.NewPostgresUserRepository(pg.Pool, hasher),
			ping:  pg.Ping,
			close: pg.Close,
		}, nil

	case config.BackendMemory, "":
		logger.Warn("using in-process user directory; accounts are lost on restart")
		return &Directory{
			Kind:  config.BackendMemory,
			Users: repository.NewMemoryUserRepository(hasher),
		}, nil

	default:
		return nil, fmt.Errorf("unknown directory backend %q", cfg.Kind)
	}
}

// Ping checks backend connectivity. The in-process backend is always reachable.
func (d *Directory) Ping(ctx context.Context) error {
	if d == nil || d.ping == nil {
		return nil
	}
	return d.ping(ctx)
}

// Close releases the backend connection.
func (d *Directory) Close() {
	if d != nil && d.close != nil {
		d.close()
	}
}
