package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
)

func writePolicy(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPolicy_DefaultsWithoutFile(t *testing.T) {
	store, err := LoadPolicy("", nil)
	require.NoError(t, err)

	assert.Equal(t, ledger.DefaultPolicy(), store.Current())
}

func TestLoadPolicy_FileOverridesSomePoints(t *testing.T) {
	path := writePolicy(t, t.TempDir(), `
points:
  session_attendance: 8
milestones:
  "14": 40
`)
	store, err := LoadPolicy(path, nil)
	require.NoError(t, err)

	p := store.Current()
	assert.Equal(t, 8, p.PointsFor(ledger.ActivitySessionAttendance))
	assert.Equal(t, 10, p.PointsFor(ledger.ActivityAssessmentCompletion), "unlisted types keep defaults")
	assert.Equal(t, []int{14}, p.MilestoneDays(), "milestones replace the default table")
}

func TestLoadPolicy_EnvOverride(t *testing.T) {
	t.Setenv("GAMIFICATION_POINTS_PROJECT_AWARD", "300")

	store, err := LoadPolicy("", nil)
	require.NoError(t, err)
	assert.Equal(t, 300, store.Current().PointsFor(ledger.ActivityProjectAward))
}

func TestLoadPolicy_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPolicy(writePolicy(t, dir, "points:\n  session_attendance: -1\n"), nil)
	assert.Error(t, err)

	_, err = LoadPolicy(writePolicy(t, dir, "milestones:\n  week: 25\n"), nil)
	assert.Error(t, err)

	_, err = LoadPolicy(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestPolicyStore_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "points:\n  session_attendance: 6\n")

	store, err := LoadPolicy(path, nil)
	require.NoError(t, err)

	var reloaded ledger.Policy
	store.OnReload = func(p ledger.Policy) { reloaded = p }

	writePolicy(t, dir, "points:\n  session_attendance: 9\n")
	store.handleChange(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.Equal(t, 9, store.Current().PointsFor(ledger.ActivitySessionAttendance))
	assert.Equal(t, 9, reloaded.PointsFor(ledger.ActivitySessionAttendance))
}

func TestPolicyStore_BadEditKeepsPreviousPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "points:\n  session_attendance: 6\n")

	store, err := LoadPolicy(path, nil)
	require.NoError(t, err)

	writePolicy(t, dir, "points:\n  session_attendance: -5\n")
	store.handleChange(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.Equal(t, 6, store.Current().PointsFor(ledger.ActivitySessionAttendance))
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("FEATURE_STREAK_MILESTONES", "false")

	ff := LoadFeatureFlags()
	assert.True(t, ff.IsEnabled(FeatureStreakDailyBonus))
	assert.False(t, ff.IsEnabled(FeatureStreakMilestones))
	assert.False(t, ff.IsEnabled("no.such.flag"))

	require.NoError(t, ff.DisableFeature(FeatureBadgeXPReward))
	assert.False(t, ff.IsEnabled(FeatureBadgeXPReward))

	var flagErr *FeatureFlagError
	assert.ErrorAs(t, ff.EnableFeature("no.such.flag"), &flagErr)
	assert.Len(t, ff.GetAllFeatures(), 4)
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("APP_TIMEZONE", "UTC")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "UTC", cfg.Gamification.Location.String())

	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)
}
