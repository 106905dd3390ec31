package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/Togather-Foundation/eventhub/internal/storage/meta"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

var errNilEntity = errors.New("entity is nil")

// repository is the GORM implementation of storage.Repository. Reads run on
// the unit of work's session (its open transaction, if any); writes are
// queued on the unit of work until SaveChanges.
type repository[T any] struct {
	uow    *UnitOfWork
	schema *schema.Schema
}

var _ storage.Repository[entities.User] = (*repository[entities.User])(nil)

func newRepository[T any](uow *UnitOfWork) *repository[T] {
	return &repository[T]{uow: uow, schema: meta.MustParse(new(T))}
}

func (r *repository[T]) session(ctx context.Context) *gorm.DB {
	return r.uow.session().WithContext(ctx)
}

func (r *repository[T]) GetByID(ctx context.Context, id int64, includes ...string) (*T, error) {
	q := storage.Query{Include: includes}
	if err := meta.Validate(r.schema, q); err != nil {
		return nil, err
	}
	pk := clause.Column{Table: clause.CurrentTable, Name: r.schema.PrioritizedPrimaryField.DBName}
	db, err := r.scoped(r.session(ctx), q)
	if err != nil {
		return nil, err
	}

	var items []T
	if err := db.Clauses(clause.Where{Exprs: []clause.Expression{clause.Eq{Column: pk, Value: id}}}).
		Limit(1).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("get %s %d: %w", r.schema.Table, id, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repository[T]) List(ctx context.Context, q storage.Query) ([]T, error) {
	db, err := r.read(r.session(ctx), q)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if err := db.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", r.schema.Table, err)
	}
	return items, nil
}

func (r *repository[T]) ListAll(ctx context.Context) ([]T, error) {
	return r.List(ctx, storage.Query{})
}

func (r *repository[T]) GetPaged(ctx context.Context, page, pageSize int, q storage.Query) (storage.Page[T], error) {
	if page < 1 || pageSize < 1 {
		return storage.Page[T]{}, storage.ErrInvalidPage
	}

	count, err := r.scoped(r.session(ctx).Model(new(T)), storage.Query{Where: q.Where})
	if err != nil {
		return storage.Page[T]{}, err
	}
	var total int64
	if err := count.Count(&total).Error; err != nil {
		return storage.Page[T]{}, fmt.Errorf("count %s: %w", r.schema.Table, err)
	}

	// Primary key breaks ties so pages never overlap.
	q = q.Sorted(storage.Asc(r.schema.PrioritizedPrimaryField.DBName))
	db, err := r.read(r.session(ctx), q)
	if err != nil {
		return storage.Page[T]{}, err
	}
	items := []T{}
	if err := db.Offset(storage.Offset(page, pageSize)).Limit(pageSize).Find(&items).Error; err != nil {
		return storage.Page[T]{}, fmt.Errorf("page %s: %w", r.schema.Table, err)
	}

	return storage.Page[T]{
		Items:      items,
		TotalCount: total,
		PageNumber: page,
		PageSize:   pageSize,
	}, nil
}

func (r *repository[T]) FirstOrDefault(ctx context.Context, q storage.Query) (*T, error) {
	db, err := r.read(r.session(ctx), q)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := db.Limit(1).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("first %s: %w", r.schema.Table, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repository[T]) Any(ctx context.Context, conditions ...storage.Condition) (bool, error) {
	db, err := r.scoped(r.session(ctx).Model(new(T)), storage.Filter(conditions...))
	if err != nil {
		return false, err
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return false, fmt.Errorf("any %s: %w", r.schema.Table, err)
	}
	return n > 0, nil
}

func (r *repository[T]) Add(_ context.Context, entity *T) error {
	if entity == nil {
		return errNilEntity
	}
	r.uow.enqueue(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(entity).Error
	})
	return nil
}

func (r *repository[T]) Update(_ context.Context, entity *T, columns ...string) error {
	if entity == nil {
		return errNilEntity
	}
	selected := []string{"*"}
	if len(columns) > 0 {
		selected = make([]string, 0, len(columns))
		for _, name := range columns {
			col, err := r.column(name)
			if err != nil {
				return err
			}
			if col.Table != clause.CurrentTable {
				return fmt.Errorf("%w: update %s cannot write %s", storage.ErrUnknownField, r.schema.Table, name)
			}
			selected = append(selected, col.Name)
		}
	}
	r.uow.enqueue(func(tx *gorm.DB) error {
		return tx.Model(entity).Select(selected).Omit(clause.Associations).Updates(entity).Error
	})
	return nil
}

func (r *repository[T]) Delete(_ context.Context, entity *T) error {
	if entity == nil {
		return errNilEntity
	}
	r.uow.enqueue(func(tx *gorm.DB) error {
		return tx.Delete(entity).Error
	})
	return nil
}

func (r *repository[T]) DeleteWhere(ctx context.Context, conditions ...storage.Condition) (int64, error) {
	if len(conditions) == 0 {
		return 0, fmt.Errorf("delete %s: %w", r.schema.Table, gorm.ErrMissingWhereClause)
	}
	for _, c := range conditions {
		if rel, _ := storage.SplitField(c.Field); rel != "" {
			return 0, fmt.Errorf("%w: delete %s cannot filter on %s", storage.ErrUnknownField, r.schema.Table, c.Field)
		}
	}
	exprs, err := r.conditions(conditions)
	if err != nil {
		return 0, err
	}
	res := r.session(ctx).Clauses(clause.Where{Exprs: exprs}).Delete(new(T))
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", r.schema.Table, r.uow.store.backend.TranslateError(res.Error))
	}
	return res.RowsAffected, nil
}

// scoped applies joins and conditions of q.
func (r *repository[T]) scoped(db *gorm.DB, q storage.Query) (*gorm.DB, error) {
	if err := meta.Validate(r.schema, q); err != nil {
		return nil, err
	}
	joined := map[string]bool{}
	for _, rel := range append(meta.Joins(q), q.Include...) {
		if !joined[rel] {
			joined[rel] = true
			db = db.Joins(rel)
		}
	}
	exprs, err := r.conditions(q.Where)
	if err != nil {
		return nil, err
	}
	if len(exprs) > 0 {
		db = db.Clauses(clause.Where{Exprs: exprs})
	}
	return db, nil
}

// read is scoped plus ordering.
func (r *repository[T]) read(db *gorm.DB, q storage.Query) (*gorm.DB, error) {
	db, err := r.scoped(db, q)
	if err != nil {
		return nil, err
	}
	for _, o := range q.OrderBy {
		col, err := r.column(o.Field)
		if err != nil {
			return nil, err
		}
		db = db.Order(clause.OrderByColumn{Column: col, Desc: o.Desc})
	}
	return db, nil
}

func (r *repository[T]) column(field string) (clause.Column, error) {
	resolved, err := meta.Resolve(r.schema, field)
	if err != nil {
		return clause.Column{}, err
	}
	if resolved.Relation != nil {
		return clause.Column{Table: resolved.Relation.Name, Name: resolved.Field.DBName}, nil
	}
	return clause.Column{Table: clause.CurrentTable, Name: resolved.Field.DBName}, nil
}

func (r *repository[T]) conditions(conditions []storage.Condition) ([]clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(conditions))
	for _, c := range conditions {
		col, err := r.column(c.Field)
		if err != nil {
			return nil, err
		}
		value := c.Value
		if t, ok := value.(time.Time); ok {
			value = t.UTC()
		}
		switch c.Op {
		case storage.OpEq:
			exprs = append(exprs, clause.Eq{Column: col, Value: value})
		case storage.OpContains:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("contains on %s needs a string, got %T", c.Field, c.Value)
			}
			exprs = append(exprs, clause.Expr{
				SQL:  `? LIKE ? ESCAPE '\'`,
				Vars: []any{col, "%" + escapeLike(s) + "%"},
			})
		case storage.OpGte:
			exprs = append(exprs, clause.Gte{Column: col, Value: value})
		case storage.OpLte:
			exprs = append(exprs, clause.Lte{Column: col, Value: value})
		case storage.OpLt:
			exprs = append(exprs, clause.Lt{Column: col, Value: value})
		default:
			return nil, fmt.Errorf("unsupported operator %s on %s", c.Op, c.Field)
		}
	}
	return exprs, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern escaped with a
// backslash.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
