package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/buyeth/identity-service/internal/api/http"
	"github.com/buyeth/identity-service/internal/auth"
	"github.com/buyeth/identity-service/internal/config"
	"github.com/buyeth/identity-service/internal/events"
	"github.com/buyeth/identity-service/internal/observability"
	"github.com/buyeth/identity-service/internal/persistence"
	"github.com/buyeth/identity-service/internal/service"
	"github.com/buyeth/identity-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Auth.InsecureDevSecret {
		logger.Warn("AUTH_JWT_SECRET not set; using insecure development secret")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hasher := auth.NewHasher(cfg.Auth.BcryptCost)

	directory, err := persistence.OpenDirectory(ctx, cfg.Directory, hasher, logger)
	if err != nil {
		logger.Fatal("failed to open user directory", zap.Error(err))
	}
	defer directory.Close()

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("invalid session configuration", zap.Error(err))
	}
	sessions := auth.NewSessionManager(tokens, directory.Users, cfg.Session)
	gate := auth.NewGate(sessions)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, cfg.Audit))

	authService, err := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:   directory.Users,
		Hasher:     hasher,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}
	userService := service.NewUserService(directory.Users, dispatcher, logger)

	app := httptransport.NewApp(httptransport.Dependencies{
		App:         cfg.App,
		Logger:      logger,
		Metrics:     observability.NewMetrics(),
		Directory:   directory,
		BackendKind: directory.Kind,
		Auth:        authService,
		Users:       userService,
		Sessions:    sessions,
		Gate:        gate,
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("env", cfg.App.Env),
			zap.String("backend", string(directory.Kind)))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
