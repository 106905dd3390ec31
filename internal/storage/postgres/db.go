// Package postgres opens the PostgreSQL database behind the shared GORM
// storage layer and owns its migrations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/Togather-Foundation/eventhub/internal/storage/gormstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Database is the process-wide connection pool with the ORM store on top.
type Database struct {
	*gormstore.Store
	Pool *pgxpool.Pool
}

var _ storage.Factory = (*Database)(nil)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Database, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgres: database url is empty")
	}
	if err := gormstore.ParseModels(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		poolCfg.MinConns = int32(min(cfg.MaxIdle, int(poolCfg.MaxConns)))
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	orm, err := gorm.Open(gormpostgres.New(gormpostgres.Config{
		Conn: stdlib.OpenDBFromPool(pool),
	}), gormstore.Config(logger, cfg.SlowQueryThreshold))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open orm: %w", err)
	}

	logger = logger.With().Str("component", "postgres").Logger()
	return &Database{
		Store: gormstore.New(orm, backend{url: cfg.URL}, logger),
		Pool:  pool,
	}, nil
}

func (d *Database) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

func (d *Database) Close() {
	if sqlDB, err := d.DB().DB(); err == nil {
		_ = sqlDB.Close()
	}
	d.Pool.Close()
}

// backend creates and drops the schema through the embedded migrations.
type backend struct {
	url string
}

func (b backend) CreateSchema(ctx context.Context, _ *gorm.DB) error {
	return MigrateUp(b.url)
}

func (b backend) DropSchema(ctx context.Context, _ *gorm.DB) error {
	return MigrateDown(b.url, 0)
}
