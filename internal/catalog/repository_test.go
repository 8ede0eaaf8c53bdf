package catalog

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestGormRepository_UpsertByName(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, &Product{Name: "Ground limestone", Kind: KindLimestone, CaOContent: 50, PricePerTon: 950}))
	require.NoError(t, repo.Upsert(ctx, &Product{Name: "Ground limestone", Kind: KindLimestone, CaOContent: 52, PricePerTon: 990}))

	products, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 52.0, products[0].CaOContent)
	assert.Equal(t, 990.0, products[0].PricePerTon)

	byKind, err := repo.GetByKind(ctx, KindLimestone)
	require.NoError(t, err)
	assert.Equal(t, "Ground limestone", byKind.Name)

	_, err = repo.GetByKind(ctx, KindDolomite)
	assert.ErrorIs(t, err, ErrNotFound)
}
