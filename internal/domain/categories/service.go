package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/sanitize"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound = errors.New("category not found")
	ErrInUse    = errors.New("category is used by events")
)

type Service struct {
	uows   storage.Factory
	logger zerolog.Logger
}

func NewService(uows storage.Factory, logger zerolog.Logger) *Service {
	return &Service{
		uows:   uows,
		logger: logger.With().Str("component", "categories").Logger(),
	}
}

func (s *Service) ListAll(ctx context.Context) ([]entities.Category, error) {
	return s.uows.New().Categories().ListAll(ctx)
}

// ListPage returns categories ordered by name. A blank search matches every
// category; otherwise names containing search are returned.
func (s *Service) ListPage(ctx context.Context, page, pageSize int, search string, desc bool) (storage.Page[entities.Category], error) {
	q := storage.Query{}
	if search = strings.TrimSpace(search); search != "" {
		q = storage.Filter(storage.Contains("name", search))
	}
	q = q.Sorted(storage.Order{Field: "name", Desc: desc})
	return s.uows.New().Categories().GetPaged(ctx, page, pageSize, q)
}

func (s *Service) Get(ctx context.Context, id int64) (*entities.Category, error) {
	category, err := s.uows.New().Categories().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ErrNotFound
	}
	return category, nil
}

func (s *Service) Create(ctx context.Context, name string) (*entities.Category, error) {
	uow := s.uows.New()
	category := &entities.Category{Name: clean(name)}
	if err := uow.Categories().Add(ctx, category); err != nil {
		return nil, err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}
	s.logger.Info().Int64("category_id", category.ID).Msg("category created")
	return category, nil
}

// Update renames an existing category.
func (s *Service) Update(ctx context.Context, id int64, name string) (*entities.Category, error) {
	uow := s.uows.New()
	category, err := uow.Categories().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ErrNotFound
	}

	category.Name = clean(name)
	if err := uow.Categories().Update(ctx, category); err != nil {
		return nil, err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}
	return category, nil
}

// Delete removes a category. Categories still referenced by events cannot be
// deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	uow := s.uows.New()
	category, err := uow.Categories().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if category == nil {
		return ErrNotFound
	}
	if err := uow.Categories().Delete(ctx, category); err != nil {
		return err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		if errors.Is(err, storage.ErrReferenced) {
			return ErrInUse
		}
		return fmt.Errorf("delete category: %w", err)
	}
	s.logger.Info().Int64("category_id", id).Msg("category deleted")
	return nil
}

func clean(name string) string {
	return sanitize.Line(name)
}
