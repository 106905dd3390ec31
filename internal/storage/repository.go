// Package storage defines the persistence contracts shared by every backend:
// a generic repository over one entity type, the unit of work that owns a
// storage session, and the declarative query values repositories interpret.
package storage

import (
	"context"
	"errors"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
)

var (
	// ErrReferenced is returned when a delete is blocked by rows that still
	// reference the target (foreign key restrict).
	ErrReferenced = errors.New("entity is still referenced")

	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate entity")

	// ErrInvalidPage is returned by GetPaged for a page or page size below 1.
	ErrInvalidPage = errors.New("page and page size must be positive")

	// ErrTransactionActive is returned by BeginTransaction when a transaction
	// is already open on the unit of work.
	ErrTransactionActive = errors.New("transaction already in progress")

	// ErrUnknownField is returned when a query names a field the entity
	// does not have.
	ErrUnknownField = errors.New("unknown query field")
)

// Repository is the data-access surface for one entity type. Queries are
// evaluated by the backing store, so string matching and null handling follow
// the store's collation rather than Go semantics.
type Repository[T any] interface {
	GetByID(ctx context.Context, id int64, includes ...string) (*T, error)
	List(ctx context.Context, query Query) ([]T, error)
	ListAll(ctx context.Context) ([]T, error)
	GetPaged(ctx context.Context, page, pageSize int, query Query) (Page[T], error)
	FirstOrDefault(ctx context.Context, query Query) (*T, error)
	Any(ctx context.Context, conditions ...Condition) (bool, error)

	// Add, Update and Delete are queued on the unit of work and applied by
	// SaveChanges. Update writes only the named columns, or every column
	// when none are named.
	Add(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T, columns ...string) error
	Delete(ctx context.Context, entity *T) error

	// DeleteWhere runs immediately and returns the number of rows removed.
	DeleteWhere(ctx context.Context, conditions ...Condition) (int64, error)
}

// UnitOfWork owns one storage session. Repositories obtained from it are
// created on first access and reused for the lifetime of the unit of work.
// A unit of work belongs to a single request or job tick.
type UnitOfWork interface {
	Users() Repository[entities.User]
	Categories() Repository[entities.Category]
	Events() Repository[entities.Event]
	Participants() Repository[entities.Participant]
	RefreshTokens() Repository[entities.RefreshToken]

	// SaveChanges flushes all queued writes as one atomic write.
	SaveChanges(ctx context.Context) error

	BeginTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error

	CreateDatabase(ctx context.Context) error
	DeleteDatabase(ctx context.Context) error
}

// Factory opens a fresh unit of work.
type Factory interface {
	New() UnitOfWork
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func() UnitOfWork

func (f FactoryFunc) New() UnitOfWork { return f() }

// Page is one page of a filtered, ordered result set.
type Page[T any] struct {
	Items      []T
	TotalCount int64
	PageNumber int
	PageSize   int
}

// Offset returns the number of rows skipped before this page.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// WithTransaction runs fn inside an explicit transaction on uow, committing on
// success and rolling back when fn fails.
func WithTransaction(ctx context.Context, uow UnitOfWork, fn func(context.Context) error) error {
	if err := uow.BeginTransaction(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := uow.RollbackTransaction(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return uow.CommitTransaction(ctx)
}
