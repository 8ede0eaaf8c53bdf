package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agrolime/liming-portal-backend/internal/catalog"
	"agrolime/liming-portal-backend/internal/config"
	"agrolime/liming-portal-backend/internal/parcels"
	"agrolime/liming-portal-backend/internal/planning"
)

// DB holds the gorm handle used by the repositories and the sqlx handle
// used by the report read model.
type DB struct {
	Gorm *gorm.DB
	SQLX *sqlx.DB
}

// Open connects to the configured database. Postgres gets a second pool
// through lib/pq for sqlx; SQLite shares one connection pool so an
// in-memory database is visible to both handles.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	switch cfg.Driver {
	case config.DriverSQLite:
		gdb, err := gorm.Open(sqlite.Open(sqliteDSN(cfg.Path)), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// SQLite serializes writers anyway
		sqlDB.SetMaxOpenConns(1)
		log.Info("Connected to database", zap.String("driver", cfg.Driver), zap.String("path", cfg.Path))
		return &DB{Gorm: gdb, SQLX: sqlx.NewDb(sqlDB, config.DriverSQLite)}, nil

	case config.DriverPostgres:
		url := cfg.GetDatabaseURL()
		gdb, err := gorm.Open(postgres.Open(url), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		configurePool(sqlDB.SetMaxOpenConns, sqlDB.SetMaxIdleConns, sqlDB.SetConnMaxLifetime, cfg)

		rdb, err := sqlx.Connect("postgres", url)
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to connect read model: %w", err)
		}
		configurePool(rdb.SetMaxOpenConns, rdb.SetMaxIdleConns, rdb.SetConnMaxLifetime, cfg)
		log.Info("Connected to database",
			zap.String("driver", cfg.Driver),
			zap.String("host", cfg.Host),
			zap.String("db_name", cfg.DBName))
		return &DB{Gorm: gdb, SQLX: rdb}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func configurePool(maxOpen, maxIdle func(int), lifetime func(time.Duration), cfg config.DatabaseConfig) {
	if cfg.MaxConnections > 0 {
		maxOpen(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		maxIdle(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		lifetime(cfg.MaxLifetime)
	}
}

// sqliteDSN turns on foreign keys so application rows cascade with plans
func sqliteDSN(path string) string {
	if strings.Contains(path, "foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}

// Migrate creates or updates every table of the portal
func Migrate(db *gorm.DB) error {
	steps := []struct {
		name    string
		migrate func(*gorm.DB) error
	}{
		{"parcels", parcels.AutoMigrate},
		{"catalog", catalog.AutoMigrate},
		{"planning", planning.AutoMigrate},
	}
	for _, step := range steps {
		if err := step.migrate(db); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", step.name, err)
		}
	}
	return nil
}

// Close closes both pools
func (d *DB) Close() error {
	var errs []error
	if d.SQLX != nil {
		errs = append(errs, d.SQLX.Close())
	}
	if sqlDB, err := d.Gorm.DB(); err == nil {
		// SQLite shares the pool with SQLX
		if d.SQLX == nil || sqlDB != d.SQLX.DB {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
