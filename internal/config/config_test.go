//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	p := writeConfig(t, `
database:
  url: postgres://localhost/coaching
auth:
  jwt_secret: s3cret
`)
	cfg, err := Load(p, true)
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Subscription.TrialDays)
	assert.Equal(t, 365, cfg.Subscription.TermDays)
	assert.Equal(t, 15, cfg.Subscription.ExpiringSoonDays)
	assert.Equal(t, int64(1200), cfg.Subscription.DefaultAmount)
	assert.Equal(t, time.Hour, cfg.Subscription.SubmitRateWindow)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.SweepInterval)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Runtime.Dev)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_URL", "redis://env:6379/0")
	t.Setenv("AUTH_JWT_SECRET", "from-env")

	p := writeConfig(t, `
database:
  url: postgres://file/db
subscription:
  submit_rate_limit: 3
  submit_rate_window: 30m
`)
	cfg, err := Load(p, false)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "redis://env:6379/0", cfg.Redis.URL)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 3, cfg.Subscription.SubmitRateLimit)
	assert.Equal(t, 30*time.Minute, cfg.Subscription.SubmitRateWindow)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load(writeConfig(t, "auth:\n  jwt_secret: x\n"), false)
	assert.EqualError(t, err, "database.url is required")

	_, err = Load(writeConfig(t, "database:\n  url: postgres://x\n"), false)
	assert.EqualError(t, err, "auth.jwt_secret is required")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)
}
