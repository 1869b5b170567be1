package config

import (
	"context"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Parse(t *testing.T) {
	goose.SetBaseFS(MigrationsFS)
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	migrations, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, int64(1), migrations[0].Version)
}

func TestMigrations_DefineConstraintNames(t *testing.T) {
	raw, err := MigrationsFS.ReadFile("migrations/00001_init.sql")
	require.NoError(t, err)

	sql := string(raw)
	assert.Contains(t, sql, "books_isbn_key")
	assert.Contains(t, sql, "users_email_key")
	assert.Contains(t, sql, "lower(email)")
}

func TestMigrate_UnknownCommand(t *testing.T) {
	err := Migrate(context.Background(), nil, "sideways")
	assert.ErrorContains(t, err, "unknown migration command")
}
