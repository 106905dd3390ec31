// Package problem writes RFC 7807 application/problem+json responses.
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

const typeBase = "https://eventhub.togather.foundation/problems/"

// Problem type URIs.
const (
	TypeValidation   = typeBase + "validation-error"
	TypeNotFound     = typeBase + "not-found"
	TypeConflict     = typeBase + "conflict"
	TypeUnauthorized = typeBase + "unauthorized"
	TypeForbidden    = typeBase + "forbidden"
	TypeRateLimited  = typeBase + "rate-limited"
	TypeTooLarge     = typeBase + "payload-too-large"
	TypeServerError  = typeBase + "server-error"
)

type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

// WithErrors attaches per-field validation messages.
func WithErrors(errs map[string]string) Option {
	return func(p *ProblemDetails) {
		p.Errors = errs
	}
}

// Write renders a problem response. The error text becomes the detail only in
// development and test; elsewhere the status text is used. Server errors are
// logged at error level, client errors at debug level, through the request
// logger.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	p := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
	}
	for _, opt := range opts {
		opt(&p)
	}

	if p.Detail == "" && err != nil {
		if exposeDetails(env) {
			p.Detail = err.Error()
		} else {
			p.Detail = http.StatusText(status)
		}
	}
	if r != nil {
		p.Instance = r.URL.Path
		logProblem(r, p, err)
	}

	WriteProblem(w, p)
}

func exposeDetails(env string) bool {
	return env == "development" || env == "test"
}

func logProblem(r *http.Request, p ProblemDetails, err error) {
	logger := zerolog.Ctx(r.Context())
	var event *zerolog.Event
	switch {
	case p.Status >= http.StatusInternalServerError:
		event = logger.Error()
	case err != nil:
		event = logger.Debug()
	default:
		return
	}
	event.Err(err).
		Int("status", p.Status).
		Str("type", p.Type).
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Msg(p.Title)
}

func WriteProblem(w http.ResponseWriter, p ProblemDetails) {
	payload, err := json.Marshal(p)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":\"about:blank\",\"title\":\"%s\",\"status\":500}", http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(p.Status)
	_, _ = w.Write(payload)
}

// Shorthands for the common classes.

func BadRequest(w http.ResponseWriter, r *http.Request, title string, err error, env string, opts ...Option) {
	Write(w, r, http.StatusBadRequest, TypeValidation, title, err, env, opts...)
}

func NotFound(w http.ResponseWriter, r *http.Request, title string, env string) {
	Write(w, r, http.StatusNotFound, TypeNotFound, title, ErrNotFound, env, WithDetail(title))
}

func Internal(w http.ResponseWriter, r *http.Request, err error, env string) {
	Write(w, r, http.StatusInternalServerError, TypeServerError, "Internal server error", err, env)
}

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
