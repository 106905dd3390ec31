// Package api assembles the HTTP surface of the service.
package api

import (
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventhub/internal/api/handlers"
	"github.com/Togather-Foundation/eventhub/internal/api/middleware"
	"github.com/Togather-Foundation/eventhub/internal/api/problem"
	"github.com/Togather-Foundation/eventhub/internal/audit"
	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// multipartOverhead is the allowance for multipart framing on top of the
// image size limit.
const multipartOverhead = 64 << 10

// Services are the domain services behind the handlers.
type Services struct {
	Accounts   handlers.AccountService
	Categories handlers.CategoryService
	Events     handlers.EventService
	Users      handlers.UserService
}

// BuildInfo is reported by /version and /readyz.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

type RouterDeps struct {
	Config      config.Config
	Logger      zerolog.Logger
	Services    Services
	Tokens      middleware.TokenValidator
	RateLimiter *middleware.RateLimiter
	DB          handlers.Pinger
	Build       BuildInfo
}

func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config
	env := cfg.Environment
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, env)
	}

	validator := handlers.NewValidator(cfg.Content)
	auditLogger := audit.NewLogger(deps.Logger)

	authHandler := handlers.NewAuthHandler(deps.Services.Accounts, validator, env)
	categoriesHandler := handlers.NewCategoriesHandler(deps.Services.Categories, validator, cfg.Content, auditLogger, env)
	eventsHandler := handlers.NewEventsHandler(deps.Services.Events, validator, cfg.Content, auditLogger, env)
	usersHandler := handlers.NewUsersHandler(deps.Services.Users, cfg.Content, env)
	health := handlers.NewHealthChecker(deps.DB, deps.Build.Version, deps.Build.GitCommit, deps.Build.BuildDate)

	authenticate := middleware.Authenticate(deps.Tokens, env)
	admin := []func(http.Handler) http.Handler{
		middleware.RequireAdmin(env),
		limiter.Limit(middleware.TierAdmin),
	}
	jsonBody := middleware.RequestSize(middleware.DefaultMaxBodySize)

	r := chi.NewRouter()
	r.Use(middleware.Recover(env))
	r.Use(middleware.CorrelationID(deps.Logger))
	r.Use(middleware.Tracing)
	r.Use(metrics.HTTPMiddleware)
	r.Use(middleware.RequestLogging())
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(middleware.CORS(cfg.CORS, deps.Logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem.NotFound(w, r, "Resource not found", env)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusMethodNotAllowed, problem.TypeValidation, "Method not allowed", nil, env)
	})

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Get("/version", health.Version)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if prefix := imagePrefix(cfg.Images); prefix != "" {
		r.Handle(prefix+"/*", http.StripPrefix(prefix, noDirListing(http.FileServer(http.Dir(cfg.Images.Dir)))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(jsonBody)
			r.With(limiter.Limit(middleware.TierLogin)).Post("/signup", authHandler.SignUp)
			r.With(limiter.Limit(middleware.TierLogin)).Post("/signin", authHandler.SignIn)
			r.With(limiter.Limit(middleware.TierLogin)).Post("/refresh", authHandler.Refresh)
			r.With(authenticate, limiter.Limit(middleware.TierPublic)).Post("/signout", authHandler.SignOut)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(limiter.Limit(middleware.TierPublic))

			r.Route("/categories", func(r chi.Router) {
				r.Use(jsonBody)
				r.Get("/", categoriesHandler.List)
				r.Get("/all", categoriesHandler.ListAll)
				r.Get("/{id}", categoriesHandler.Get)
				r.With(admin...).Post("/", categoriesHandler.Create)
				r.With(admin...).Put("/", categoriesHandler.Update)
				r.With(admin...).Delete("/{id}", categoriesHandler.Delete)
			})

			r.Route("/events", func(r chi.Router) {
				r.With(jsonBody).Get("/", eventsHandler.List)
				r.With(jsonBody).Get("/all", eventsHandler.ListAll)
				r.With(jsonBody).Get("/{id}", eventsHandler.Get)
				r.With(jsonBody).Get("/title/{title}", eventsHandler.ListByTitle)
				r.With(jsonBody).Post("/filter", eventsHandler.Filter)
				r.With(jsonBody).Get("/{id}/image", eventsHandler.GetImage)

				r.Group(func(r chi.Router) {
					r.Use(admin...)
					r.With(jsonBody).Post("/", eventsHandler.Create)
					r.With(jsonBody).Put("/", eventsHandler.Update)
					r.With(jsonBody).Delete("/{id}", eventsHandler.Delete)
					r.With(middleware.RequestSize(cfg.Images.MaxUploadBytes+multipartOverhead)).
						Post("/{id}/image", eventsHandler.UploadImage)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(jsonBody)
				r.Post("/events/{id}/participate", usersHandler.Participate)
				r.Delete("/events/{id}/participate", usersHandler.CancelParticipation)
				r.Get("/events/{id}/participants", usersHandler.Participants)
				r.Get("/events/{id}/participants/all", usersHandler.AllParticipants)
				r.Get("/participants/{userId}", usersHandler.Participant)
			})
		})
	})

	return r
}

// imagePrefix normalizes the public image URL prefix to "/name" form.
func imagePrefix(cfg config.ImagesConfig) string {
	prefix := strings.TrimRight(strings.TrimSpace(cfg.URLPrefix), "/")
	if prefix == "" || cfg.Dir == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// noDirListing hides directory indexes of the image store.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
