package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFS_ConsecutiveGooseFiles(t *testing.T) {
	names, err := fs.Glob(MigrationFS(), "*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{
		"00001_create_ledger.sql",
		"00002_create_badges.sql",
		"00003_create_streaks_and_roster.sql",
	}, names)

	for _, name := range names {
		body, err := fs.ReadFile(MigrationFS(), name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestMigrationFS_LedgerHasIdempotencyIndexes(t *testing.T) {
	body, err := fs.ReadFile(MigrationFS(), "00001_create_ledger.sql")
	require.NoError(t, err)

	assert.Contains(t, string(body), "WHERE activity_id IS NOT NULL")
	assert.Contains(t, string(body), "WHERE activity_type = 'daily_streak'")
}
