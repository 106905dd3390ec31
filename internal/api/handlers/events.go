package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/api/problem"
	"github.com/Togather-Foundation/eventhub/internal/audit"
	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/domain/events"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is the part of an upload kept in memory before spilling
// to temporary files.
const multipartMemory = 4 << 20

type EventService interface {
	ListAll(ctx context.Context) ([]entities.Event, error)
	ListPage(ctx context.Context, filter events.Filter, sort events.Sort, page, pageSize int) (storage.Page[entities.Event], error)
	Get(ctx context.Context, id int64) (*entities.Event, error)
	Create(ctx context.Context, in events.Input) (*entities.Event, error)
	Update(ctx context.Context, id int64, in events.Input) (*entities.Event, error)
	Delete(ctx context.Context, id int64) error
	SetImage(ctx context.Context, id int64, fileName string, content io.Reader) (string, error)
	GetImagePath(ctx context.Context, id int64) (string, error)
}

type EventsHandler struct {
	Service   EventService
	Validator *Validator
	Content   config.ContentConfig
	Audit     *audit.Logger
	Env       string
}

func NewEventsHandler(service EventService, validator *Validator, content config.ContentConfig, auditLogger *audit.Logger, env string) *EventsHandler {
	return &EventsHandler{Service: service, Validator: validator, Content: content, Audit: auditLogger, Env: env}
}

type eventRequest struct {
	Title           string    `json:"title" validate:"event_title"`
	Description     string    `json:"description" validate:"event_description"`
	Location        string    `json:"location" validate:"event_location"`
	DateTime        time.Time `json:"date_time" validate:"required,future"`
	MaxParticipants int       `json:"max_participants" validate:"capacity"`
	CategoryID      int64     `json:"category_id" validate:"gt=0"`
}

func (req eventRequest) input() events.Input {
	return events.Input{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		DateTime:        req.DateTime,
		MaxParticipants: req.MaxParticipants,
		CategoryID:      req.CategoryID,
	}
}

type updateEventRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
	eventRequest
}

type filterRequest struct {
	Title      string     `json:"title" validate:"search_text"`
	FromDate   *time.Time `json:"from_date"`
	ToDate     *time.Time `json:"to_date"`
	Location   string     `json:"location" validate:"search_text"`
	CategoryID *int64     `json:"category_id" validate:"omitempty,gt=0"`
}

// List serves one page of events, optionally sorted by sort_by.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	h.listPage(w, r, events.Filter{})
}

// ListByTitle pages the events whose title contains the path value.
func (h *EventsHandler) ListByTitle(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(chi.URLParam(r, "title"))
	if title == "" {
		problem.BadRequest(w, r, "Invalid request", errors.New("title cannot be empty"), h.Env,
			problem.WithErrors(map[string]string{"title": "is required"}))
		return
	}
	if len(title) > h.Content.SearchLengthMax {
		problem.BadRequest(w, r, "Invalid request", errors.New("title is too long"), h.Env,
			problem.WithErrors(map[string]string{"title": "must be at most " + strconv.Itoa(h.Content.SearchLengthMax) + " characters long"}))
		return
	}
	h.listPage(w, r, events.Filter{Title: title})
}

// Filter pages the events matching the JSON filter body. Paging stays in the
// query string.
func (h *EventsHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !bind(w, r, h.Validator, &req, h.Env) {
		return
	}
	if req.FromDate != nil && req.ToDate != nil && req.FromDate.After(*req.ToDate) {
		problem.BadRequest(w, r, "Invalid request", errors.New("from_date must be less than or equal to to_date"), h.Env,
			problem.WithErrors(map[string]string{"from_date": "must be less than or equal to to_date"}))
		return
	}
	h.listPage(w, r, events.Filter{
		Title:      req.Title,
		From:       req.FromDate,
		To:         req.ToDate,
		Location:   req.Location,
		CategoryID: req.CategoryID,
	})
}

func (h *EventsHandler) listPage(w http.ResponseWriter, r *http.Request, filter events.Filter) {
	p, ok := readPage(w, r, h.Content, h.Env)
	if !ok {
		return
	}
	field, ok := events.ParseSortField(p.SortBy)
	if !ok {
		problem.BadRequest(w, r, "Invalid request", errors.New("unknown sort field"), h.Env,
			problem.WithErrors(map[string]string{"sort_by": "must be one of: title location date_time max_participants"}))
		return
	}

	page, err := h.Service.ListPage(r.Context(), filter, events.Sort{Field: field, Desc: p.Desc}, p.Page, p.PageSize)
	if err != nil {
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toPage(page, toEvent))
}

func (h *EventsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.Service.ListAll(r.Context())
	if err != nil {
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(all, toEvent))
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	event, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvent(*event))
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !bind(w, r, h.Validator, &req, h.Env) {
		return
	}
	event, err := h.Service.Create(r.Context(), req.input())
	if err != nil {
		recordAudit(h.Audit, r, "event.create", "event", "", err)
		h.writeError(w, r, err)
		return
	}
	recordAudit(h.Audit, r, "event.create", "event", strconv.FormatInt(event.ID, 10), nil)
	writeJSON(w, http.StatusCreated, toEvent(*event))
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if !bind(w, r, h.Validator, &req, h.Env) {
		return
	}
	event, err := h.Service.Update(r.Context(), req.ID, req.input())
	recordAudit(h.Audit, r, "event.update", "event", strconv.FormatInt(req.ID, 10), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvent(*event))
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	err := h.Service.Delete(r.Context(), id)
	recordAudit(h.Audit, r, "event.delete", "event", strconv.FormatInt(id, 10), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores the multipart "image" file as the event image.
func (h *EventsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Image too large", err, h.Env)
			return
		}
		problem.BadRequest(w, r, "No image provided", err, h.Env)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		problem.BadRequest(w, r, "No image provided", err, h.Env,
			problem.WithErrors(map[string]string{"image": "is required"}))
		return
	}
	defer file.Close()

	url, err := h.Service.SetImage(r.Context(), id, header.Filename, file)
	recordAudit(h.Audit, r, "event.image", "event", strconv.FormatInt(id, 10), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{ImagePath: url})
}

func (h *EventsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	url, err := h.Service.GetImagePath(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{ImagePath: url})
}

func (h *EventsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, events.ErrNotFound):
		problem.NotFound(w, r, "Event not found", h.Env)
	case errors.Is(err, events.ErrNoImage):
		problem.NotFound(w, r, "Event has no image", h.Env)
	case errors.Is(err, events.ErrInvalidCategory):
		problem.BadRequest(w, r, "Invalid category", err, h.Env,
			problem.WithErrors(map[string]string{"category_id": "category does not exist"}))
	case errors.Is(err, events.ErrUnsupportedImage):
		problem.BadRequest(w, r, "Unsupported image type", err, h.Env,
			problem.WithErrors(map[string]string{"image": "must be a jpg, jpeg, png, gif or webp file"}))
	case errors.Is(err, events.ErrImageTooLarge):
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Image too large", err, h.Env)
	default:
		problem.Internal(w, r, err, h.Env)
	}
}
