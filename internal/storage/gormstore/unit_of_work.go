package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"gorm.io/gorm"
)

// UnitOfWork is one storage session over a Store. It is not meant to be
// shared across requests, but its methods are safe for the concurrent
// lookups a single service call fans out.
type UnitOfWork struct {
	store *Store

	mu      sync.Mutex
	repos   map[reflect.Type]any
	tx      *gorm.DB
	pending []func(*gorm.DB) error
}

var _ storage.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(store *Store) *UnitOfWork {
	return &UnitOfWork{store: store, repos: make(map[reflect.Type]any)}
}

func (u *UnitOfWork) Users() storage.Repository[entities.User] {
	return repositoryFor[entities.User](u)
}

func (u *UnitOfWork) Categories() storage.Repository[entities.Category] {
	return repositoryFor[entities.Category](u)
}

func (u *UnitOfWork) Events() storage.Repository[entities.Event] {
	return repositoryFor[entities.Event](u)
}

func (u *UnitOfWork) Participants() storage.Repository[entities.Participant] {
	return repositoryFor[entities.Participant](u)
}

func (u *UnitOfWork) RefreshTokens() storage.Repository[entities.RefreshToken] {
	return repositoryFor[entities.RefreshToken](u)
}

// repositoryFor returns the repository registered for T, creating it on first
// use.
func repositoryFor[T any](u *UnitOfWork) storage.Repository[T] {
	key := reflect.TypeFor[T]()

	u.mu.Lock()
	defer u.mu.Unlock()
	if repo, ok := u.repos[key]; ok {
		return repo.(storage.Repository[T])
	}
	repo := newRepository[T](u)
	u.repos[key] = repo
	return repo
}

func (u *UnitOfWork) session() *gorm.DB {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tx != nil {
		return u.tx
	}
	return u.store.orm
}

func (u *UnitOfWork) enqueue(op func(*gorm.DB) error) {
	u.mu.Lock()
	u.pending = append(u.pending, op)
	u.mu.Unlock()
}

// SaveChanges applies queued writes in order. Outside an explicit transaction
// the batch gets its own; inside one, it joins it. The queue is emptied
// either way.
func (u *UnitOfWork) SaveChanges(ctx context.Context) error {
	u.mu.Lock()
	ops := u.pending
	u.pending = nil
	tx := u.tx
	u.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	apply := func(db *gorm.DB) error {
		for _, op := range ops {
			if err := op(db.WithContext(ctx)); err != nil {
				return u.store.backend.TranslateError(err)
			}
		}
		return nil
	}

	if tx != nil {
		if err := apply(tx); err != nil {
			return fmt.Errorf("save changes: %w", err)
		}
		return nil
	}
	if err := u.store.orm.WithContext(ctx).Transaction(apply); err != nil {
		return fmt.Errorf("save changes: %w", err)
	}
	return nil
}

func (u *UnitOfWork) BeginTransaction(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tx != nil {
		return storage.ErrTransactionActive
	}
	tx := u.store.orm.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}
	u.tx = tx
	return nil
}

// CommitTransaction commits the open transaction. On failure the transaction
// is rolled back and the commit error returned.
func (u *UnitOfWork) CommitTransaction(ctx context.Context) error {
	tx := u.takeTx()
	if tx == nil {
		return nil
	}
	if err := tx.Commit().Error; err != nil {
		u.store.logger.Error().Err(err).Msg("commit transaction failed")
		if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			u.store.logger.Error().Err(rbErr).Msg("rollback after failed commit failed")
		}
		return fmt.Errorf("commit transaction: %w", u.store.backend.TranslateError(err))
	}
	return nil
}

// RollbackTransaction discards the open transaction and any queued writes.
func (u *UnitOfWork) RollbackTransaction(ctx context.Context) error {
	tx := u.takeTx()
	u.mu.Lock()
	u.pending = nil
	u.mu.Unlock()
	if tx == nil {
		return nil
	}
	if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		u.store.logger.Error().Err(err).Msg("rollback transaction failed")
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

func (u *UnitOfWork) takeTx() *gorm.DB {
	u.mu.Lock()
	defer u.mu.Unlock()
	tx := u.tx
	u.tx = nil
	return tx
}

// CreateDatabase creates the schema through the backend.
func (u *UnitOfWork) CreateDatabase(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return u.store.backend.CreateSchema(ctx, u.store.orm.WithContext(ctx))
}

// DeleteDatabase drops every table.
func (u *UnitOfWork) DeleteDatabase(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return u.store.backend.DropSchema(ctx, u.store.orm.WithContext(ctx))
}
