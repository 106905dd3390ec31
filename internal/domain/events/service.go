// Package events manages events, their listing filters and their images.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/sanitize"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound         = errors.New("event not found")
	ErrInvalidCategory  = errors.New("invalid event category id")
	ErrNoImage          = errors.New("event has no image")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image exceeds the upload limit")
)

// Filter narrows event listings. Zero fields are ignored.
type Filter struct {
	Title      string
	From       *time.Time
	To         *time.Time
	Location   string
	CategoryID *int64
}

func (f Filter) conditions() []storage.Condition {
	var conds []storage.Condition
	if title := strings.TrimSpace(f.Title); title != "" {
		conds = append(conds, storage.Contains("title", title))
	}
	if f.From != nil {
		conds = append(conds, storage.Gte("date_time", f.From.UTC()))
	}
	if f.To != nil {
		conds = append(conds, storage.Lte("date_time", f.To.UTC()))
	}
	if location := strings.TrimSpace(f.Location); location != "" {
		conds = append(conds, storage.Contains("location", location))
	}
	if f.CategoryID != nil {
		conds = append(conds, storage.Eq("category_id", *f.CategoryID))
	}
	return conds
}

type SortField string

const (
	SortNone            SortField = ""
	SortTitle           SortField = "title"
	SortLocation        SortField = "location"
	SortDateTime        SortField = "date_time"
	SortMaxParticipants SortField = "max_participants"
)

// ParseSortField maps a request value onto a sort column. Unknown values
// report false.
func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortNone, SortTitle, SortLocation, SortDateTime, SortMaxParticipants:
		return f, true
	default:
		return SortNone, false
	}
}

type Sort struct {
	Field SortField
	Desc  bool
}

func (s Sort) apply(q storage.Query) storage.Query {
	if s.Field == SortNone {
		return q
	}
	return q.Sorted(storage.Order{Field: string(s.Field), Desc: s.Desc})
}

// Input carries the writable fields of an event.
type Input struct {
	Title           string
	Description     string
	Location        string
	DateTime        time.Time
	MaxParticipants int
	CategoryID      int64
}

type Service struct {
	uows   storage.Factory
	images config.ImagesConfig
	logger zerolog.Logger
}

func NewService(uows storage.Factory, images config.ImagesConfig, logger zerolog.Logger) *Service {
	return &Service{
		uows:   uows,
		images: images,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

func (s *Service) ListAll(ctx context.Context) ([]entities.Event, error) {
	return s.uows.New().Events().List(ctx, storage.Query{}.Including("Category"))
}

func (s *Service) List(ctx context.Context, filter Filter) ([]entities.Event, error) {
	return s.uows.New().Events().List(ctx, storage.Filter(filter.conditions()...).Including("Category"))
}

func (s *Service) ListPage(ctx context.Context, filter Filter, sort Sort, page, pageSize int) (storage.Page[entities.Event], error) {
	q := sort.apply(storage.Filter(filter.conditions()...)).Including("Category")
	return s.uows.New().Events().GetPaged(ctx, page, pageSize, q)
}

func (s *Service) Get(ctx context.Context, id int64) (*entities.Event, error) {
	event, err := s.uows.New().Events().GetByID(ctx, id, "Category")
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrNotFound
	}
	return event, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*entities.Event, error) {
	uow := s.uows.New()
	if err := checkCategory(ctx, uow, in.CategoryID); err != nil {
		return nil, err
	}

	event := &entities.Event{}
	in.applyTo(event)
	if err := uow.Events().Add(ctx, event); err != nil {
		return nil, err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, saveError(err)
	}
	s.logger.Info().Int64("event_id", event.ID).Int64("category_id", event.CategoryID).Msg("event created")
	return event, nil
}

// Update overwrites the writable fields of an existing event. The image is
// kept.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*entities.Event, error) {
	uow := s.uows.New()
	event, err := uow.Events().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrNotFound
	}
	if err := checkCategory(ctx, uow, in.CategoryID); err != nil {
		return nil, err
	}

	in.applyTo(event)
	if err := uow.Events().Update(ctx, event, writableColumns...); err != nil {
		return nil, err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return nil, saveError(err)
	}
	return event, nil
}

// Delete removes an event together with its participations.
func (s *Service) Delete(ctx context.Context, id int64) error {
	uow := s.uows.New()
	event, err := uow.Events().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if event == nil {
		return ErrNotFound
	}
	if err := uow.Events().Delete(ctx, event); err != nil {
		return err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	s.removeImageFile(event.ImagePath)
	s.logger.Info().Int64("event_id", id).Msg("event deleted")
	return nil
}

// writableColumns are the columns applyTo sets. The image path is written
// only by SetImage.
var writableColumns = []string{"title", "description", "location", "date_time", "max_participants", "category_id"}

func (in Input) applyTo(e *entities.Event) {
	e.Title = sanitize.Line(in.Title)
	e.Description = strings.TrimSpace(sanitize.Text(in.Description))
	e.Location = sanitize.Line(in.Location)
	e.DateTime = in.DateTime.UTC()
	e.MaxParticipants = in.MaxParticipants
	e.CategoryID = in.CategoryID
}

func checkCategory(ctx context.Context, uow storage.UnitOfWork, id int64) error {
	ok, err := uow.Categories().Any(ctx, storage.Eq("id", id))
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return ErrInvalidCategory
	}
	return nil
}

// saveError maps a foreign key failure to ErrInvalidCategory; the category
// can disappear between the check and the write.
func saveError(err error) error {
	if errors.Is(err, storage.ErrReferenced) {
		return ErrInvalidCategory
	}
	return fmt.Errorf("save event: %w", err)
}
