package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/eventhub/internal/api/problem"
	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and trailing data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// bind decodes and validates a request body, writing the problem response
// itself on failure.
func bind(w http.ResponseWriter, r *http.Request, v *Validator, dst any, env string) bool {
	if err := decodeJSON(r, dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", err, env)
			return false
		}
		problem.BadRequest(w, r, "Invalid request body", err, env)
		return false
	}
	return validate(w, r, v, dst, env)
}

func validate(w http.ResponseWriter, r *http.Request, v *Validator, s any, env string) bool {
	err := v.Struct(s)
	if err == nil {
		return true
	}
	var verr ValidationError
	if errors.As(err, &verr) {
		problem.BadRequest(w, r, "Invalid request", err, env, problem.WithErrors(verr), problem.WithDetail("One or more fields are invalid."))
		return false
	}
	problem.Internal(w, r, err, env)
	return false
}

// pathID reads a positive integer URL parameter.
func pathID(w http.ResponseWriter, r *http.Request, name, env string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		problem.BadRequest(w, r, "Invalid request", fmt.Errorf("%s must be a positive integer", name), env,
			problem.WithErrors(map[string]string{name: "must be a positive integer"}))
		return 0, false
	}
	return id, true
}

// pageParams holds the paging query parameters shared by list endpoints.
type pageParams struct {
	Page     int
	PageSize int
	SortBy   string
	Desc     bool
	Search   string
}

// parsePage reads page, page_size, sort_by, desc and search from the query
// string.
func parsePage(r *http.Request, content config.ContentConfig) (pageParams, error) {
	q := r.URL.Query()
	p := pageParams{Page: 1, PageSize: content.DefaultPageSize}
	errs := ValidationError{}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs["page"] = "must be greater than 0"
		}
		p.Page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > content.PageSizeMax {
			errs["page_size"] = fmt.Sprintf("must be between 1 and %d", content.PageSizeMax)
		}
		p.PageSize = n
	}
	if raw := q.Get("desc"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs["desc"] = "must be a boolean"
		}
		p.Desc = b
	}
	p.SortBy = strings.TrimSpace(q.Get("sort_by"))
	p.Search = strings.TrimSpace(q.Get("search"))
	if len(p.Search) > content.SearchLengthMax {
		errs["search"] = fmt.Sprintf("must be at most %d characters long", content.SearchLengthMax)
	}

	if len(errs) > 0 {
		return p, errs
	}
	return p, nil
}

func readPage(w http.ResponseWriter, r *http.Request, content config.ContentConfig, env string) (pageParams, bool) {
	p, err := parsePage(r, content)
	if err != nil {
		var verr ValidationError
		errors.As(err, &verr)
		problem.BadRequest(w, r, "Invalid request", err, env, problem.WithErrors(verr), problem.WithDetail("Invalid paging parameters."))
		return p, false
	}
	return p, true
}

// PageResponse is the wire form of one page of results.
type PageResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	PageNumber int   `json:"page_number"`
	PageSize   int   `json:"page_size"`
}

func toPage[E, T any](page storage.Page[E], convert func(E) T) PageResponse[T] {
	items := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, convert(item))
	}
	return PageResponse[T]{
		Items:      items,
		TotalCount: page.TotalCount,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}
}

func mapSlice[E, T any](in []E, convert func(E) T) []T {
	out := make([]T, 0, len(in))
	for _, item := range in {
		out = append(out, convert(item))
	}
	return out
}
