package client

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestInitDatabase_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "app.db")

	db, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.PingContext(ctx))
	for _, table := range []string{"goose_db_version", "metadata", "transactions", "products", "services"} {
		assert.True(t, tableExists(t, db, table), table)
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "app.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db), "second run should be a no-op")
	assert.True(t, tableExists(t, db, "products"))
}

func TestInitDatabase_ServerIDUniquePerOwner(t *testing.T) {
	ctx := context.Background()
	db, err := InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	insert := `INSERT INTO products (server_id, owner_id, payload, last_modified_at) VALUES (?, ?, '{}', 1)`
	_, err = db.ExecContext(ctx, insert, 7, "o1")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, 7, "o2")
	require.NoError(t, err, "same server id under another owner")
	_, err = db.ExecContext(ctx, insert, nil, "o1")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, nil, "o1")
	require.NoError(t, err, "unsynced rows share a NULL server id")

	_, err = db.ExecContext(ctx, insert, 7, "o1")
	require.Error(t, err)
}

func TestInitDatabase_MigrationError(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	boom := errors.New("boom")
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }

	_, err := InitDatabase(context.Background(), ":memory:")
	require.ErrorIs(t, err, boom)
}
