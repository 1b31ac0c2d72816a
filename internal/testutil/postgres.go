package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/reactome/release-qa-sub001/domain/instances"
)

// PostgresURLEnv names the DSN of a disposable PostgreSQL database.
const PostgresURLEnv = "TEST_DATABASE_URL"

// OpenPostgres mirrors store into a fresh schema of the database named by
// TEST_DATABASE_URL. The test is skipped in -short mode or when the
// variable is unset. The schema is dropped when the test ends.
func OpenPostgres(t testing.TB, store *instances.MemoryStore) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL test in short mode")
	}
	dsn := os.Getenv(PostgresURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithTimeout(10*time.Second)))
	// search_path is per connection
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	db := bun.NewDB(sqldb, pgdialect.New())

	ctx := context.Background()
	schemaName := fmt.Sprintf("release_qa_test_%d", time.Now().UnixNano())
	_, err := db.ExecContext(ctx, "CREATE SCHEMA "+quote(schemaName))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), "DROP SCHEMA "+quote(schemaName)+" CASCADE")
		_ = db.Close()
	})
	_, err = db.ExecContext(ctx, "SET search_path TO "+quote(schemaName))
	require.NoError(t, err)

	Populate(t, db, store)
	return db
}
