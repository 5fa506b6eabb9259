package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "AUTH_JWT_SECRET", "AUTH_BCRYPT_COST", "AUTH_ALLOW_PUBLIC_SIGNUP",
		"SESSION_COOKIE_NAME", "SESSION_MAX_AGE_SECONDS", "SESSION_COOKIE_SECURE",
		"KV_REST_API_URL", "KV_REST_API_TOKEN", "POSTGRES_DSN", "DIRECTORY_BACKEND",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, BackendMemory, cfg.Directory.Kind)
	assert.Equal(t, "session", cfg.Session.CookieName)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.MaxAge())
	assert.False(t, cfg.Session.Secure)
	assert.False(t, cfg.Auth.AllowPublicSignup)
	assert.True(t, cfg.Auth.InsecureDevSecret)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestLoad_ProductionDefaultsSecureCookie(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Session.Secure)
	assert.False(t, cfg.Auth.InsecureDevSecret)
	assert.True(t, cfg.App.Production())
}

func TestLoad_BackendSelection(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    BackendKind
		wantErr bool
	}{
		{name: "memory fallback", env: map[string]string{}, want: BackendMemory},
		{
			name: "kv credentials select redis",
			env:  map[string]string{"KV_REST_API_URL": "https://eu1-fine-cat.upstash.io/", "KV_REST_API_TOKEN": "tok"},
			want: BackendRedis,
		},
		{
			name: "kv url without token stays in memory",
			env:  map[string]string{"KV_REST_API_URL": "https://eu1-fine-cat.upstash.io"},
			want: BackendMemory,
		},
		{
			name: "postgres dsn",
			env:  map[string]string{"POSTGRES_DSN": "postgres://localhost/buyeth"},
			want: BackendPostgres,
		},
		{
			name: "kv wins over postgres",
			env: map[string]string{
				"KV_REST_API_URL": "redis://localhost:6379", "KV_REST_API_TOKEN": "tok",
				"POSTGRES_DSN": "postgres://localhost/buyeth",
			},
			want: BackendRedis,
		},
		{
			name: "explicit override",
			env:  map[string]string{"DIRECTORY_BACKEND": "memory", "POSTGRES_DSN": "postgres://localhost/buyeth"},
			want: BackendMemory,
		},
		{
			name:    "override without credentials",
			env:     map[string]string{"DIRECTORY_BACKEND": "redis"},
			wantErr: true,
		},
		{
			name:    "unknown override",
			env:     map[string]string{"DIRECTORY_BACKEND": "etcd"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Directory.Kind)
		})
	}
}

func TestLoad_TrimsKVURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("KV_REST_API_URL", "https://eu1-fine-cat.upstash.io//")
	t.Setenv("KV_REST_API_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://eu1-fine-cat.upstash.io", cfg.Directory.KV.URL)
}

func TestLoad_RejectsNonPositiveSessionAge(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_MAX_AGE_SECONDS", "-5")

	_, err := Load()
	require.Error(t, err)
}
