package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteMemory(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&n))
	assert.Zero(t, n)

	// running the schema twice is harmless
	assert.NoError(t, Migrate(ctx, db, DriverSQLite))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM tasks WHERE id = ? AND version = ?"
	assert.Equal(t, q, Rebind(DriverSQLite, q))
	assert.Equal(t, "SELECT * FROM tasks WHERE id = $1 AND version = $2", Rebind(DriverPostgres, q))
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN("db", "5432", "app", "secret", "tasks", "disable")
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=tasks sslmode=disable", dsn)
}
