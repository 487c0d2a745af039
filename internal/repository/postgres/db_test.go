package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_Sorted(t *testing.T) {
	names, err := migrationNames()

	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_directory.sql", names[0])
	for _, n := range names {
		assert.True(t, strings.HasSuffix(n, ".sql"), n)
	}
}

func TestMigrations_DeclareDirectoryTables(t *testing.T) {
	sql, err := migrations.ReadFile("migrations/001_directory.sql")
	require.NoError(t, err)

	for _, table := range []string{"organizations", "members", "sessions", "projects", "channels", "webhooks", "push_subscriptions", "api_keys"} {
		assert.Contains(t, string(sql), "CREATE TABLE IF NOT EXISTS "+table+" ", table)
	}
	assert.Contains(t, string(sql), "ON channels (project_id, name) WHERE deleted_at IS NULL")
}
