package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/config"
)

func TestOpen_SQLiteSharesPool(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db.Gorm))

	var tables []string
	require.NoError(t, db.SQLX.SelectContext(context.Background(), &tables,
		db.SQLX.Rebind("SELECT name FROM sqlite_master WHERE type = ? ORDER BY name"), "table"))
	assert.Subset(t, tables, []string{"liming_applications", "liming_plans", "nutrient_readings", "parcels"})

	var fk int
	require.NoError(t, db.SQLX.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)

	require.NoError(t, db.Close())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "lime.db?_pragma=foreign_keys(1)", sqliteDSN("lime.db"))
	assert.Equal(t, "lime.db?mode=rwc&_pragma=foreign_keys(1)", sqliteDSN("lime.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=foreign_keys(0)", sqliteDSN("x.db?_pragma=foreign_keys(0)"))
}
