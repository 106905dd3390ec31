// Package metrics owns the Prometheus registry and every collector the server
// exports on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventhub"

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

// AppInfo exposes build information as labels; the value is always 1.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application build information (always 1, details in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Auth and participation outcomes
var (
	AuthOperationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Auth service operations by operation and result",
		},
		[]string{"operation", "result"}, // operation: register|login|refresh|logout
	)

	ParticipationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participations_total",
			Help:      "Participant add and remove attempts by result",
		},
		[]string{"action", "result"},
	)
)

// Token cleaner
var (
	RefreshTokensDeleted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_deleted_total",
			Help:      "Expired refresh tokens removed by the token cleaner",
		},
	)

	TokenCleanupDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_cleanup_duration_seconds",
			Help:      "Duration of one token cleaner sweep in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	TokenCleanupErrors = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_cleanup_errors_total",
			Help:      "Token cleaner sweeps that failed",
		},
	)
)

// Init registers the runtime collectors and publishes build information.
// Call it once per process.
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

// Result labels a counter outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
