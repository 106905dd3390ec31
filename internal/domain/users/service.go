// Package users exposes user lookups and event participation.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/metrics"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrInvalidUser     = errors.New("invalid user id")
	ErrInvalidEvent    = errors.New("invalid event id")
	ErrCapacityReached = errors.New("already max participant number")
)

// lookupConcurrency bounds the parallel user lookups of ListEventUsers.
const lookupConcurrency = 8

type SortField string

const (
	SortEmail       SortField = "email"
	SortLastName    SortField = "last_name"
	SortDateOfBirth SortField = "date_of_birth"
)

// ParseSortField maps a request value onto a participant sort column. An
// empty value sorts by last name.
func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return SortLastName, true
	case SortEmail, SortLastName, SortDateOfBirth:
		return f, true
	default:
		return "", false
	}
}

type Service struct {
	uows   storage.Factory
	locks  *eventLocks
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(uows storage.Factory, logger zerolog.Logger) *Service {
	return &Service{
		uows:   uows,
		locks:  newEventLocks(),
		now:    time.Now,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// ListEventUsers returns the users taking part in an event. An unknown event
// has no users.
func (s *Service) ListEventUsers(ctx context.Context, eventID int64) ([]entities.User, error) {
	uow := s.uows.New()
	participants, err := uow.Participants().List(ctx, storage.Filter(storage.Eq("event_id", eventID)))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	found := make([]*entities.User, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, p := range participants {
		g.Go(func() error {
			user, err := uow.Users().GetByID(gctx, p.UserID)
			if err != nil {
				return fmt.Errorf("get user %d: %w", p.UserID, err)
			}
			found[i] = user
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	users := make([]entities.User, 0, len(found))
	for _, u := range found {
		if u != nil {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	user, err := s.uows.New().Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// ListEventUsersPage pages the users of an event ordered by a user column.
func (s *Service) ListEventUsersPage(ctx context.Context, eventID int64, sort SortField, desc bool, page, pageSize int) (storage.Page[entities.User], error) {
	if sort == "" {
		sort = SortLastName
	}
	q := storage.Filter(storage.Eq("event_id", eventID)).
		Sorted(storage.Order{Field: "User." + string(sort), Desc: desc}).
		Including("User")

	participants, err := s.uows.New().Participants().GetPaged(ctx, page, pageSize, q)
	if err != nil {
		return storage.Page[entities.User]{}, err
	}

	out := storage.Page[entities.User]{
		Items:      make([]entities.User, 0, len(participants.Items)),
		TotalCount: participants.TotalCount,
		PageNumber: participants.PageNumber,
		PageSize:   participants.PageSize,
	}
	for _, p := range participants.Items {
		if p.User != nil {
			out.Items = append(out.Items, *p.User)
		}
	}
	return out, nil
}

type lookup struct {
	user        *entities.User
	event       *entities.Event
	participant *entities.Participant
}

// resolve loads the user, the event and an existing participation
// concurrently, each on its own unit of work.
func (s *Service) resolve(ctx context.Context, userID, eventID int64) (lookup, error) {
	var l lookup
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		l.user, err = s.uows.New().Users().GetByID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		l.event, err = s.uows.New().Events().GetByID(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		l.participant, err = s.uows.New().Participants().FirstOrDefault(gctx,
			storage.Filter(storage.Eq("event_id", eventID), storage.Eq("user_id", userID)))
		return err
	})
	if err := g.Wait(); err != nil {
		return lookup{}, fmt.Errorf("resolve participation: %w", err)
	}

	if l.user == nil || l.user.Role != entities.RoleDefaultUser {
		return lookup{}, ErrInvalidUser
	}
	if l.event == nil {
		return lookup{}, ErrInvalidEvent
	}
	return l, nil
}

// AddParticipant registers the user for the event. Joining an event twice is
// not an error and does not add a second participation. Joins of one event
// are serialized so the capacity check cannot be raced.
func (s *Service) AddParticipant(ctx context.Context, userID, eventID int64) (err error) {
	defer func() { record("add", err) }()

	l, err := s.resolve(ctx, userID, eventID)
	if err != nil {
		return err
	}
	if l.participant != nil {
		return nil
	}

	unlock, err := s.locks.lock(ctx, eventID)
	if err != nil {
		return err
	}
	defer unlock()

	uow := s.uows.New()
	err = storage.WithTransaction(ctx, uow, func(ctx context.Context) error {
		participants := uow.Participants()
		joined, err := participants.Any(ctx, storage.Eq("event_id", eventID), storage.Eq("user_id", userID))
		if err != nil {
			return err
		}
		if joined {
			return nil
		}

		current, err := participants.GetPaged(ctx, 1, 1, storage.Filter(storage.Eq("event_id", eventID)))
		if err != nil {
			return err
		}
		if current.TotalCount >= int64(l.event.MaxParticipants) {
			return ErrCapacityReached
		}

		if err := participants.Add(ctx, &entities.Participant{
			EventID:          eventID,
			UserID:           userID,
			RegistrationDate: s.now().UTC(),
		}); err != nil {
			return err
		}
		return uow.SaveChanges(ctx)
	})
	if err != nil {
		if errors.Is(err, ErrCapacityReached) {
			return err
		}
		if errors.Is(err, storage.ErrReferenced) {
			return ErrInvalidEvent
		}
		return fmt.Errorf("add participant: %w", err)
	}

	s.logger.Info().Int64("user_id", userID).Int64("event_id", eventID).Msg("participant added")
	return nil
}

// RemoveParticipant cancels the user's participation. Cancelling a
// participation that does not exist succeeds.
func (s *Service) RemoveParticipant(ctx context.Context, userID, eventID int64) (err error) {
	defer func() { record("remove", err) }()

	l, err := s.resolve(ctx, userID, eventID)
	if err != nil {
		return err
	}
	if l.participant == nil {
		return nil
	}

	uow := s.uows.New()
	if err := uow.Participants().Delete(ctx, l.participant); err != nil {
		return err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	s.logger.Info().Int64("user_id", userID).Int64("event_id", eventID).Msg("participant removed")
	return nil
}

func record(action string, err error) {
	result := metrics.Result(err)
	if errors.Is(err, ErrInvalidUser) || errors.Is(err, ErrInvalidEvent) || errors.Is(err, ErrCapacityReached) {
		result = "rejected"
	}
	metrics.ParticipationsTotal.WithLabelValues(action, result).Inc()
}
