package persistence

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/buyeth/identity-service/internal/config"
)

// upstashRedisPort is the Redis protocol port exposed next to the REST endpoint.
const upstashRedisPort = "6379"

// Redis wraps the go-redis client used by the remote directory backend.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to the key-value store described by cfg. An unreachable store is
// logged, not fatal; readiness reports it.
func NewRedis(ctx context.Context, cfg config.KVConfig, logger *zap.Logger) (*Redis, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	if isRESTEndpoint(cfg.URL) {
		logger.Warn("KV_REST_API_URL is a REST endpoint; connecting over the Redis protocol with the REST token as password. Prefer a rediss:// URL",
			zap.String("addr", opts.Addr))
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("unable to reach key-value store", zap.String("addr", opts.Addr), zap.Error(err))
	} else {
		logger.Info("connected to key-value store", zap.String("addr", opts.Addr))
	}

	return &Redis{Client: client}, nil
}

// redisOptions accepts redis:// and rediss:// URLs as-is, and maps an https REST
// endpoint (Upstash style) onto its TLS Redis listener with the token as password.
func redisOptions(cfg config.KVConfig) (*redis.Options, error) {
	if cfg.URL == "" {
		return nil, errors.New("kv url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse kv url: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse kv url: %w", err)
		}
		if opts.Password == "" && cfg.Token != "" {
			opts.Password = cfg.Token
		}
		return opts, nil
	case "https", "http":
		host := u.Hostname()
		if host == "" {
			return nil, fmt.Errorf("kv url %q has no host", cfg.URL)
		}
		if cfg.Token == "" {
			return nil, errors.New("kv token is required for REST endpoints")
		}
		port := u.Port()
		if port == "" || port == "443" || port == "80" {
			port = upstashRedisPort
		}
		opts := &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Username: "default",
			Password: cfg.Token,
		}
		if u.Scheme == "https" {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
		}
		return opts, nil
	default:
		return nil, fmt.Errorf("unsupported kv url scheme %q", u.Scheme)
	}
}

func isRESTEndpoint(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http")
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
