package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/metrics"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/Togather-Foundation/eventhub/internal/storage/sqlite"
	"github.com/Togather-Foundation/eventhub/internal/storage/storagetest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTokens(t *testing.T, store *sqlite.Database, now time.Time) {
	t.Helper()
	ctx := context.Background()
	uow := store.New()
	user := &entities.User{FirstName: "A", LastName: "B", Email: "a@example.com", PasswordHash: "x", DateOfBirth: now.AddDate(-30, 0, 0)}
	require.NoError(t, uow.Users().Add(ctx, user))
	require.NoError(t, uow.SaveChanges(ctx))

	for _, expires := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		require.NoError(t, uow.RefreshTokens().Add(ctx, &entities.RefreshToken{
			Token:     expires.String(),
			ExpiresAt: expires,
			UserID:    user.ID,
		}))
	}
	require.NoError(t, uow.SaveChanges(ctx))
}

func TestTokenCleaner_RunOnce(t *testing.T) {
	store := storagetest.SQLite(t)
	now := time.Now().UTC()
	seedTokens(t, store, now)

	cleaner := NewTokenCleaner(store, time.Minute, zerolog.Nop())
	cleaner.now = func() time.Time { return now }

	before := testutil.ToFloat64(metrics.RefreshTokensDeleted)
	n, err := cleaner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.RefreshTokensDeleted))

	left, err := store.New().RefreshTokens().ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, left[0].ExpiresAt.After(now))

	n, err = cleaner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTokenCleaner_StartStopsOnCancel(t *testing.T) {
	store := storagetest.SQLite(t)
	now := time.Now().UTC()
	seedTokens(t, store, now)

	cleaner := NewTokenCleaner(store, 10*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := cleaner.Start(ctx)

	require.Eventually(t, func() bool {
		left, err := store.New().RefreshTokens().ListAll(context.Background())
		return err == nil && len(left) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("token cleaner did not stop")
	}
}

type failingFactory struct{ storage.UnitOfWork }

func (f failingFactory) New() storage.UnitOfWork { return f }

func (f failingFactory) RefreshTokens() storage.Repository[entities.RefreshToken] {
	return failingRepo{}
}

type failingRepo struct {
	storage.Repository[entities.RefreshToken]
}

func (failingRepo) DeleteWhere(context.Context, ...storage.Condition) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestTokenCleaner_RunOnceFailure(t *testing.T) {
	cleaner := NewTokenCleaner(failingFactory{}, time.Minute, zerolog.Nop())

	before := testutil.ToFloat64(metrics.TokenCleanupErrors)
	_, err := cleaner.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TokenCleanupErrors))
}
