package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/categories/all":                     "/api/v1/categories/all",
		"/api/v1/categories/{id}":                    "/api/v1/categories/{param}",
		"/api/v1/events/{id}/image":                  "/api/v1/events/{param}/image",
		"/api/v1/users/events/{id}/participate":      "/api/v1/users/events/{param}/participate",
		"/api/v1/users/events/{id}/participants/all": "/api/v1/users/events/{param}/participants/all",
		"/api/v1/users/participants/{userId}":        "/api/v1/users/participants/{param}",
		"":                                           "",
		"healthz":                                    "healthz",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePath(in), in)
	}
}

func TestHTTPMiddleware_CategoryAndUnmatchedRoutes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/v1/categories/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	label := "/api/v1/categories/{param}"
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, label, "204"))
	for _, id := range []string{"1", "2", "42"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/categories/"+id, nil))
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, label, "204"))-before)

	missBefore := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))-missBefore)
}
