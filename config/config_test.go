package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "")
	t.Setenv("REFRESH_TOKEN_EXPIRE_HOURS", "")
	t.Setenv("USER_CACHE_TTL_SECONDS", "")
	t.Setenv("DEFAULT_ADMIN_USERNAME", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REFRESH_SECRET", "")
	t.Setenv("JWT_ALGORITHM", "")

	cfg := Load()
	assert.Equal(t, 240*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 300*time.Second, cfg.UserCacheTTL)
	assert.Equal(t, "admin", cfg.DefaultAdminUsername)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.True(t, cfg.IsDevelopment())
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("REFRESH_TOKEN_EXPIRE_HOURS", "24")
	t.Setenv("USER_CACHE_TTL_SECONDS", "60")
	t.Setenv("USER_EVENTS_ENABLED", "true")
	t.Setenv("HASHER_WORKERS", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, time.Minute, cfg.UserCacheTTL)
	assert.True(t, cfg.UserEventsEnabled)
	assert.Positive(t, cfg.HasherWorkers)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins())
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "same")
	t.Setenv("REFRESH_SECRET", "same")
	t.Setenv("JWT_ALGORITHM", "RS256")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ALGORITHM")
	assert.Contains(t, err.Error(), "must differ")

	t.Setenv("REFRESH_SECRET", "other")
	t.Setenv("JWT_ALGORITHM", "HS512")
	assert.NoError(t, Load().Validate())

	t.Setenv("JWT_SECRET", "")
	assert.Error(t, Load().Validate())
}
