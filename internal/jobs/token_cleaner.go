// Package jobs holds the background work the server runs next to the API.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/metrics"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/rs/zerolog"
)

// TokenCleaner periodically deletes refresh tokens whose expiry has passed.
type TokenCleaner struct {
	uows     storage.Factory
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

func NewTokenCleaner(uows storage.Factory, interval time.Duration, logger zerolog.Logger) *TokenCleaner {
	return &TokenCleaner{
		uows:     uows,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("component", "token_cleaner").Logger(),
	}
}

// Start runs the cleaner in its own goroutine until ctx is cancelled. The
// returned channel is closed once the goroutine has exited.
func (c *TokenCleaner) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	return done
}

// Run sweeps once per interval and blocks until ctx is cancelled. A failed
// sweep is logged and the next tick retries.
func (c *TokenCleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", c.interval).Msg("token cleaner started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("token cleaner stopped")
			return
		case <-ticker.C:
			if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error().Err(err).Msg("token cleanup failed")
			}
		}
	}
}

// RunOnce deletes every expired refresh token on a fresh unit of work and
// returns the number removed.
func (c *TokenCleaner) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { metrics.TokenCleanupDuration.Observe(time.Since(start).Seconds()) }()

	n, err := c.uows.New().RefreshTokens().DeleteWhere(ctx, storage.LessThan("expires_at", c.now().UTC()))
	if err != nil {
		metrics.TokenCleanupErrors.Inc()
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	metrics.RefreshTokensDeleted.Add(float64(n))
	if n > 0 {
		c.logger.Info().Int64("deleted", n).Msg("expired refresh tokens removed")
	} else {
		c.logger.Debug().Msg("no expired refresh tokens")
	}
	return n, nil
}
