package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBPoolConns is the pgx pool size by connection state.
	DBPoolConns = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_connections",
			Help:      "PostgreSQL pool connections by state (acquired, idle, max)",
		},
		[]string{"state"},
	)

	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Statement latency by leading SQL keyword",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Failed statements by leading SQL keyword and cause",
		},
		[]string{"operation", "error_type"},
	)
)

// DBCollector copies pool statistics into DBPoolConns on a fixed interval.
type DBCollector struct {
	pool *pgxpool.Pool
	stop chan struct{}
	once sync.Once
}

func NewDBCollector(pool *pgxpool.Pool) *DBCollector {
	return &DBCollector{pool: pool, stop: make(chan struct{})}
}

// Start samples once, then every interval until Stop or ctx ends. It blocks.
func (c *DBCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.sample()
		select {
		case <-ticker.C:
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends Start. Extra calls do nothing.
func (c *DBCollector) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *DBCollector) sample() {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	DBPoolConns.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	DBPoolConns.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBPoolConns.WithLabelValues("max").Set(float64(stat.MaxConns()))
}

// RecordQuery observes one statement. Context cancellation and deadlines are
// counted apart from driver failures.
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	cause := "query_error"
	switch {
	case errors.Is(err, context.Canceled):
		cause = "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		cause = "timeout"
	}
	DBErrors.WithLabelValues(operation, cause).Inc()
}
