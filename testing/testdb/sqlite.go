package testdb

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"contact-service/internal/db"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var memCounter atomic.Int64

// NewSQLite opens a private in-memory SQLite database for one test and
// creates the tables of the given models. It is closed on test cleanup.
//
// Usage:
//
//	func TestRepo(t *testing.T) {
//	    database := testdb.NewSQLite(t, (*contact.Contact)(nil))
//	    // ... test
//	}
func NewSQLite(t *testing.T, models ...interface{}) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, memCounter.Add(1))

	database, err := db.NewSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(context.Background(), database, models...))
	return database
}
