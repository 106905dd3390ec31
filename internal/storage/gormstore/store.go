// Package gormstore implements the storage contracts on top of GORM. The
// concrete databases (postgres, sqlite) open the connection and supply a
// Backend; repositories and units of work are shared.
package gormstore

import (
	"context"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/Togather-Foundation/eventhub/internal/storage/meta"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Backend is what a concrete database adds to the shared GORM layer.
type Backend interface {
	// TranslateError maps driver constraint violations onto the storage
	// sentinels and returns any other error unchanged.
	TranslateError(err error) error
	CreateSchema(ctx context.Context, db *gorm.DB) error
	DropSchema(ctx context.Context, db *gorm.DB) error
}

// Store is the process-wide ORM handle. Units of work borrow it; they never
// close it.
type Store struct {
	orm     *gorm.DB
	backend Backend
	logger  zerolog.Logger
}

var _ storage.Factory = (*Store)(nil)

func New(orm *gorm.DB, backend Backend, logger zerolog.Logger) *Store {
	return &Store{orm: orm, backend: backend, logger: logger}
}

// New opens a unit of work on the shared handle.
func (s *Store) New() storage.UnitOfWork {
	return NewUnitOfWork(s)
}

// DB exposes the underlying handle for lifecycle code such as Close.
func (s *Store) DB() *gorm.DB {
	return s.orm
}

// Config is the GORM configuration every backend opens with.
func Config(logger zerolog.Logger, slowThreshold time.Duration) *gorm.Config {
	return &gorm.Config{
		Logger:                 NewGormLogger(logger, slowThreshold),
		NamingStrategy:         meta.Naming(),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

// Models lists the persisted entities in dependency order.
func Models() []any {
	return []any{
		&entities.User{},
		&entities.Category{},
		&entities.Event{},
		&entities.Participant{},
		&entities.RefreshToken{},
	}
}

// ParseModels fails fast on a model GORM cannot map.
func ParseModels() error {
	for _, model := range Models() {
		if _, err := meta.Parse(model); err != nil {
			return err
		}
	}
	return nil
}
