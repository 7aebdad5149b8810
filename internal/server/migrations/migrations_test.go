package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_create_users.sql", "00002_create_refresh_tokens.sql"}, names)

	for _, n := range names {
		b, err := fs.ReadFile(Migrations, n)
		require.NoError(t, err)
		s := string(b)
		assert.Contains(t, s, "-- +goose Up", n)
		assert.Contains(t, s, "-- +goose Down", n)
	}
}

func TestMigrations_Cascade(t *testing.T) {
	b, err := fs.ReadFile(Migrations, "00002_create_refresh_tokens.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "ON DELETE CASCADE"))
}
