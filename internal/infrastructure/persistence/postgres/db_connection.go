// Package postgres provides relational persistence for Sentinel: API key
// snapshots through GORM and a pgx-based connection pool for the bulk
// event archive writer.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/pkg/logger"
)

// NewGormDB opens a GORM connection to the configured database and runs
// migrations for the snapshot tables.
func NewGormDB(cfg *config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&apiKeyRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Info(context.Background(), "database connection established",
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database))
	return db, nil
}

// NewPgxPool creates a pgx connection pool for the archive writer. Separate
// from the GORM handle; the archive path uses COPY-style batch inserts.
func NewPgxPool(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	log.Info(ctx, "archive connection pool initialized",
		logger.String("host", cfg.Host),
		logger.Int("max_conns", int(poolCfg.MaxConns)))
	return pool, nil
}
