package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/eventhub/internal/api/problem"
	"github.com/Togather-Foundation/eventhub/internal/audit"
	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/domain/categories"
	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/storage"
)

type CategoryService interface {
	ListAll(ctx context.Context) ([]entities.Category, error)
	ListPage(ctx context.Context, page, pageSize int, search string, desc bool) (storage.Page[entities.Category], error)
	Get(ctx context.Context, id int64) (*entities.Category, error)
	Create(ctx context.Context, name string) (*entities.Category, error)
	Update(ctx context.Context, id int64, name string) (*entities.Category, error)
	Delete(ctx context.Context, id int64) error
}

type CategoriesHandler struct {
	Service   CategoryService
	Validator *Validator
	Content   config.ContentConfig
	Audit     *audit.Logger
	Env       string
}

func NewCategoriesHandler(service CategoryService, validator *Validator, content config.ContentConfig, auditLogger *audit.Logger, env string) *CategoriesHandler {
	return &CategoriesHandler{Service: service, Validator: validator, Content: content, Audit: auditLogger, Env: env}
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"category_name"`
}

type updateCategoryRequest struct {
	ID   int64  `json:"id" validate:"gt=0"`
	Name string `json:"name" validate:"category_name"`
}

func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := readPage(w, r, h.Content, h.Env)
	if !ok {
		return
	}
	page, err := h.Service.ListPage(r.Context(), p.Page, p.PageSize, p.Search, p.Desc)
	if err != nil {
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toPage(page, toCategory))
}

func (h *CategoriesHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.Service.ListAll(r.Context())
	if err != nil {
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(all, toCategory))
}

func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	category, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategory(*category))
}

func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if !bind(w, r, h.Validator, &req, h.Env) {
		return
	}
	category, err := h.Service.Create(r.Context(), req.Name)
	if err != nil {
		recordAudit(h.Audit, r, "category.create", "category", "", err)
		h.writeError(w, r, err)
		return
	}
	recordAudit(h.Audit, r, "category.create", "category", strconv.FormatInt(category.ID, 10), nil)
	writeJSON(w, http.StatusCreated, toCategory(*category))
}

func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if !bind(w, r, h.Validator, &req, h.Env) {
		return
	}
	category, err := h.Service.Update(r.Context(), req.ID, req.Name)
	recordAudit(h.Audit, r, "category.update", "category", strconv.FormatInt(req.ID, 10), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategory(*category))
}

func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	err := h.Service.Delete(r.Context(), id)
	recordAudit(h.Audit, r, "category.delete", "category", strconv.FormatInt(id, 10), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoriesHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, categories.ErrNotFound):
		problem.NotFound(w, r, "Category not found", h.Env)
	case errors.Is(err, categories.ErrInUse):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Category in use", err, h.Env,
			problem.WithDetail("The category is still referenced by events."))
	default:
		problem.Internal(w, r, err, h.Env)
	}
}
