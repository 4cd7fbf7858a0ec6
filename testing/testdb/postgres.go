package testdb

import (
	"context"
	"testing"

	"contact-service/internal/db"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

// NewPostgres starts a PostgreSQL container owned by t, connects through
// bun and creates the tables of the given models. Subtests share it, so
// call Truncate between them.
//
// Usage:
//
//	func TestRepoPostgres(t *testing.T) {
//	    database := testdb.NewPostgres(t, (*contact.Contact)(nil))
//	    t.Run("case", func(t *testing.T) {
//	        testdb.Truncate(t, database, "contacts")
//	        // ... test
//	    })
//	}
func NewPostgres(t *testing.T, models ...interface{}) *bun.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("contacts"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	database, err := db.NewPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(ctx, database, models...))
	return database
}

// Truncate empties tables and resets their identity sequences.
func Truncate(t *testing.T, database *bun.DB, tables ...string) {
	t.Helper()

	for _, table := range tables {
		_, err := database.NewTruncateTable().
			TableExpr(table).
			Cascade().
			Exec(context.Background())
		require.NoError(t, err, "failed to truncate table %s", table)
	}
}
