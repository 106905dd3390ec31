// Package sqlite opens an embedded SQLite database behind the shared GORM
// storage layer. The driver is pure Go, so the database needs no server and
// no cgo toolchain.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/Togather-Foundation/eventhub/internal/storage/gormstore"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Pragmas applied to every connection. Foreign keys are off by default in
// SQLite and LIKE ignores ASCII case unless told otherwise.
const pragmas = "_pragma=foreign_keys(1)&_pragma=case_sensitive_like(1)&_time_format=sqlite"

type Database struct {
	*gormstore.Store
}

var _ storage.Factory = (*Database)(nil)

// Open opens the database file named by cfg.URL, creating it and its schema
// when missing. ":memory:" keeps the database in process memory for as long
// as it stays open.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Database, error) {
	if cfg.URL == "" {
		return nil, errors.New("sqlite: database path is empty")
	}
	if err := gormstore.ParseModels(); err != nil {
		return nil, err
	}

	orm, err := gorm.Open(gormsqlite.Open(cfg.URL+"?"+pragmas), gormstore.Config(logger, cfg.SlowQueryThreshold))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := orm.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer, and an in-memory database
	// lives only as long as its connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := registerTimeCallbacks(orm); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db := &Database{
		Store: gormstore.New(orm, backend{}, logger.With().Str("component", "sqlite").Logger()),
	}
	if err := db.New().CreateDatabase(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() {
	if sqlDB, err := d.DB().DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// backend derives the schema from the entity models.
type backend struct{}

func (backend) CreateSchema(_ context.Context, db *gorm.DB) error {
	if err := db.AutoMigrate(gormstore.Models()...); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (backend) DropSchema(_ context.Context, db *gorm.DB) error {
	if err := db.Migrator().DropTable(gormstore.Models()...); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}
