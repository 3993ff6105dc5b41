package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "gamification.db", cfg.Database.SQLitePath)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 5*time.Minute, cfg.Gamification.LeaderboardCacheTTL)
	assert.Equal(t, 4, cfg.Gamification.BadgeParallelism)
	assert.Equal(t, "Asia/Almaty", cfg.Gamification.Location.String())
	assert.True(t, cfg.Features.IsEnabled(FeatureLeaderboardCache))
}

func TestLoad_AssemblesPostgresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "gamer")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_SSLMODE", "disable")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://gamer:pw@db.internal:5432/postgres?sslmode=disable", cfg.Database.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("LEADERBOARD_CACHE_TTL", "30s")
	t.Setenv("FEATURE_BADGES_XP_REWARD", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.True(t, cfg.Redis.Disabled)
	assert.Equal(t, 30*time.Second, cfg.Gamification.LeaderboardCacheTTL)
	assert.False(t, cfg.Features.IsEnabled(FeatureBadgeXPReward))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		App:           AppConfig{Environment: EnvProduction},
		Database:      DatabaseConfig{Driver: DriverSQLite, SQLitePath: ":memory:"},
		Gamification:  GamificationConfig{BadgeParallelism: 0},
		Observability: ObservabilityConfig{LogFormat: "xml"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.Contains(t, err.Error(), "in-memory SQLite")
	assert.Contains(t, err.Error(), "HTTP_ADDR")
}
