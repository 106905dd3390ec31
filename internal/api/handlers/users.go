package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Togather-Foundation/eventhub/internal/api/middleware"
	"github.com/Togather-Foundation/eventhub/internal/api/problem"
	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/domain/users"
	"github.com/Togather-Foundation/eventhub/internal/storage"
)

type UserService interface {
	ListEventUsers(ctx context.Context, eventID int64) ([]entities.User, error)
	ListEventUsersPage(ctx context.Context, eventID int64, sort users.SortField, desc bool, page, pageSize int) (storage.Page[entities.User], error)
	GetUser(ctx context.Context, userID int64) (*entities.User, error)
	AddParticipant(ctx context.Context, userID, eventID int64) error
	RemoveParticipant(ctx context.Context, userID, eventID int64) error
}

type UsersHandler struct {
	Service UserService
	Content config.ContentConfig
	Env     string
}

func NewUsersHandler(service UserService, content config.ContentConfig, env string) *UsersHandler {
	return &UsersHandler{Service: service, Content: content, Env: env}
}

// Participate adds the caller to the event.
func (h *UsersHandler) Participate(w http.ResponseWriter, r *http.Request) {
	h.manage(w, r, h.Service.AddParticipant, true)
}

// CancelParticipation removes the caller from the event.
func (h *UsersHandler) CancelParticipation(w http.ResponseWriter, r *http.Request) {
	h.manage(w, r, h.Service.RemoveParticipant, false)
}

func (h *UsersHandler) manage(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, eventID int64) error, adding bool) {
	eventID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	userID, err := middleware.UserID(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, h.Env)
		return
	}

	err = op(r.Context(), userID, eventID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, participantResponse{IsAdded: adding})
	case errors.Is(err, users.ErrInvalidUser), errors.Is(err, users.ErrInvalidEvent), errors.Is(err, users.ErrCapacityReached):
		writeJSON(w, http.StatusBadRequest, participantResponse{IsAdded: false, ErrorDescription: err.Error()})
	default:
		problem.Internal(w, r, err, h.Env)
	}
}

// Participants serves one page of an event's participants.
func (h *UsersHandler) Participants(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	p, ok := readPage(w, r, h.Content, h.Env)
	if !ok {
		return
	}
	sort, ok := users.ParseSortField(p.SortBy)
	if !ok {
		problem.BadRequest(w, r, "Invalid request", errors.New("unknown sort field"), h.Env,
			problem.WithErrors(map[string]string{"sort_by": "must be one of: email last_name date_of_birth"}))
		return
	}

	page, err := h.Service.ListEventUsersPage(r.Context(), eventID, sort, p.Desc, p.Page, p.PageSize)
	if err != nil {
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toPage(page, toUser))
}

func (h *UsersHandler) AllParticipants(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	all, err := h.Service.ListEventUsers(r.Context(), eventID)
	if err != nil {
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(all, toUser))
}

func (h *UsersHandler) Participant(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId", h.Env)
	if !ok {
		return
	}
	user, err := h.Service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			problem.NotFound(w, r, "User not found", h.Env)
			return
		}
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toUser(*user))
}
