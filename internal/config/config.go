package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envProduction = "production"

	// devJWTSecret is only used outside production when AUTH_JWT_SECRET is unset.
	devJWTSecret = "dev_insecure_change_me"

	defaultSessionMaxAge = 7 * 24 * 60 * 60
)

// ErrMissingSecret is returned when production starts without a signing secret.
var ErrMissingSecret = errors.New("AUTH_JWT_SECRET is required in production")

// BackendKind selects the user directory implementation.
type BackendKind string

const (
	BackendMemory   BackendKind = "memory"
	BackendRedis    BackendKind = "redis"
	BackendPostgres BackendKind = "postgres"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Directory DirectoryConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Session   SessionConfig
	Audit     AuditConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// DirectoryConfig is the backend choice, resolved once at load time.
type DirectoryConfig struct {
	Kind     BackendKind
	KV       KVConfig
	Postgres PostgresConfig
}

// KVConfig holds the remote key-value store credentials.
type KVConfig struct {
	URL   string
	Token string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret         string
	BcryptCost        int
	AllowPublicSignup bool

	// InsecureDevSecret is set when the development fallback secret is in use.
	InsecureDevSecret bool
}

// SessionConfig defines the session cookie.
type SessionConfig struct {
	CookieName    string
	MaxAgeSeconds int
	Secure        bool
}

// AuditConfig holds the audit delivery target.
type AuditConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	app := AppConfig{
		Name:                  getEnv("APP_NAME", "buyeth-service"),
		Env:                   getEnv("APP_ENV", "development"),
		Host:                  getEnv("APP_HOST", "0.0.0.0"),
		Port:                  getEnv("APP_PORT", "8080"),
		Version:               getEnv("APP_VERSION", "dev"),
		RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
	}

	auth := AuthConfig{
		JWTSecret:         os.Getenv("AUTH_JWT_SECRET"),
		BcryptCost:        getEnvAsInt("AUTH_BCRYPT_COST", 10),
		AllowPublicSignup: getEnvAsBool("AUTH_ALLOW_PUBLIC_SIGNUP", false),
	}
	if auth.JWTSecret == "" {
		if app.Production() {
			return nil, ErrMissingSecret
		}
		auth.JWTSecret = devJWTSecret
		auth.InsecureDevSecret = true
	}

	session := SessionConfig{
		CookieName:    getEnv("SESSION_COOKIE_NAME", "session"),
		MaxAgeSeconds: getEnvAsInt("SESSION_MAX_AGE_SECONDS", defaultSessionMaxAge),
		Secure:        getEnvAsBool("SESSION_COOKIE_SECURE", app.Production()),
	}
	if session.MaxAgeSeconds <= 0 {
		return nil, fmt.Errorf("invalid SESSION_MAX_AGE_SECONDS: %d", session.MaxAgeSeconds)
	}

	directory := DirectoryConfig{
		KV: KVConfig{
			URL:   strings.TrimRight(os.Getenv("KV_REST_API_URL"), "/"),
			Token: os.Getenv("KV_REST_API_TOKEN"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
	}
	kind, err := resolveBackend(os.Getenv("DIRECTORY_BACKEND"), directory)
	if err != nil {
		return nil, err
	}
	directory.Kind = kind

	cfg := &Config{
		App:       app,
		Directory: directory,
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth:    auth,
		Session: session,
		Audit: AuditConfig{
			WebhookURL: getEnv("AUDIT_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// resolveBackend picks the directory implementation. An explicit override wins, then the
// presence of remote KV credentials, then a postgres DSN; memory is the fallback.
func resolveBackend(override string, dir DirectoryConfig) (BackendKind, error) {
	switch BackendKind(strings.ToLower(strings.TrimSpace(override))) {
	case "":
	case BackendMemory:
		return BackendMemory, nil
	case BackendRedis:
		if dir.KV.URL == "" {
			return "", errors.New("DIRECTORY_BACKEND=redis requires KV_REST_API_URL")
		}
		return BackendRedis, nil
	case BackendPostgres:
		if dir.Postgres.DSN == "" {
			return "", errors.New("DIRECTORY_BACKEND=postgres requires POSTGRES_DSN")
		}
		return BackendPostgres, nil
	default:
		return "", fmt.Errorf("unknown DIRECTORY_BACKEND %q", override)
	}

	if dir.KV.URL != "" && dir.KV.Token != "" {
		return BackendRedis, nil
	}
	if dir.Postgres.DSN != "" {
		return BackendPostgres, nil
	}
	return BackendMemory, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// Production reports whether the service runs with production settings.
func (a AppConfig) Production() bool {
	return strings.EqualFold(a.Env, envProduction)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// MaxAge returns the session lifetime.
func (s SessionConfig) MaxAge() time.Duration {
	return time.Duration(s.MaxAgeSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
