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
		"ADDR", "APP_ENV", "LOG_LEVEL", "ROSTER_PATH", "ADMIN_SECRET_CODE",
		"SESSION_SECRET", "SESSION_TTL", "PRESENCE_STALE_AFTER", "PRESENCE_SWEEP_SPEC",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_CHANNEL",
		"DATABASE_URL", "ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "configs/roster.yaml", cfg.RosterPath)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Minute, cfg.PresenceStaleAfter)
	assert.Equal(t, "@every 30s", cfg.PresenceSweepSpec)
	assert.Equal(t, "secret-santa-game", cfg.RedisChannel)
	assert.NotEmpty(t, cfg.SessionSecret, "development gets a throwaway secret")
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADDR", ":9000")
	t.Setenv("SESSION_SECRET", "abc")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("PRESENCE_STALE_AFTER", "90s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ALLOWED_ORIGINS", "localhost:*, example.com ,")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "abc", cfg.SessionSecret)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 90*time.Second, cfg.PresenceStaleAfter)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.AllowedOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad ttl":      {"SESSION_TTL", "forever"},
		"zero stale":   {"PRESENCE_STALE_AFTER", "0s"},
		"bad redis db": {"REDIS_DB", "x"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_ProductionNeedsSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingSessionSecret)
}
