package db

import (
	"context"
	"path/filepath"
	"testing"

	"contact-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

func TestNew_SQLiteFileAndMigrations(t *testing.T) {
	database, err := New(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	defer Close(database)

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, database, (*widget)(nil)))
	// idempotent
	require.NoError(t, RunMigrations(ctx, database, (*widget)(nil)))

	_, err = database.NewInsert().Model(&widget{Name: "a"}).Exec(ctx)
	require.NoError(t, err)
	_, err = database.NewInsert().Model(&widget{Name: "a"}).Exec(ctx)
	assert.Error(t, err, "unique tag must create a constraint")
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(config.DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "app",
		Password: "secret",
		DBName:   "contacts",
	})
	assert.Equal(t, "postgres://app:secret@db:5432/contacts?sslmode=disable", dsn)
}
