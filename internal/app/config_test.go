package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPlatformDefaults(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL": "postgres://pos@db/pos",
		"JWT_SECRET":   "0123456789abcdef",
		"PORT":         "9000",
	}
	getenv := func(k string) string { return env[k] }

	t.Run("Fills empty fields", func(t *testing.T) {
		cfg := Config{Addr: defaultAddr}
		cfg.applyPlatformDefaults(getenv)

		assert.Equal(t, "postgres://pos@db/pos", cfg.DatabaseURL)
		assert.Equal(t, "0123456789abcdef", cfg.JWT.Secret)
		assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
		require.NoError(t, cfg.validate())
	})
	t.Run("Explicit values win", func(t *testing.T) {
		cfg := Config{
			Addr:        "127.0.0.1:7000",
			DatabaseURL: "postgres://explicit",
			JWT:         JWTConfig{Secret: "explicit-secret-value"},
		}
		cfg.applyPlatformDefaults(getenv)

		assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
		assert.Equal(t, "explicit-secret-value", cfg.JWT.Secret)
		assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{JWT: JWTConfig{Secret: "0123456789abcdef"}}
	assert.ErrorContains(t, cfg.validate(), "database URL")

	cfg = Config{DatabaseURL: "postgres://x", JWT: JWTConfig{Secret: "short"}}
	assert.ErrorContains(t, cfg.validate(), "JWT secret")
}
