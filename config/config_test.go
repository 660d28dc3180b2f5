package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, 24, cfg.JWT.ExpireHours)
	assert.Equal(t, "http://localhost:8000", cfg.Recommendation.EngineURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("JWT_EXPIRE_HOURS", "72")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RECOMMENDATION_ENGINE_URL", "http://engine:8000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 72, cfg.JWT.ExpireHours)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "http://engine:8000", cfg.Recommendation.EngineURL)
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("JWT_EXPIRE_HOURS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.JWT.ExpireHours)
}

func TestDatabaseDSN(t *testing.T) {
	built := DatabaseConfig{
		Host: "db", Port: "5433", User: "app", Password: "pw", DBName: "learnlive", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://app:pw@db:5433/learnlive?sslmode=disable", built.DSN())

	explicit := DatabaseConfig{URL: "postgres://x:y@z:1/db"}
	assert.Equal(t, "postgres://x:y@z:1/db", explicit.DSN())
}
