package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/Togather-Foundation/eventhub/internal/storage/sqlite"
	"github.com/Togather-Foundation/eventhub/internal/storage/storagetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabase_Contract(t *testing.T) {
	storagetest.RunContract(t, func(t *testing.T) storage.Factory {
		return storagetest.SQLite(t)
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), config.DatabaseConfig{}, zerolog.Nop())
	require.Error(t, err)
}

func TestOpen_InMemory(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, config.DatabaseConfig{URL: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(ctx))
	user := storagetest.SeedUser(t, ctx, db.New(), "mem@example.com", "Mem")

	got, err := db.New().Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "mem@example.com", got.Email)
}

func TestDatabase_RecreateResetsTables(t *testing.T) {
	ctx := context.Background()
	uow := storagetest.SQLite(t).New()
	storagetest.SeedUser(t, ctx, uow, "x@example.com", "X")
	storagetest.SeedEvent(t, ctx, uow, "Concert")

	require.NoError(t, uow.DeleteDatabase(ctx))
	require.NoError(t, uow.CreateDatabase(ctx))

	users, err := uow.Users().ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	again := storagetest.SeedUser(t, ctx, uow, "z@example.com", "Z")
	assert.Equal(t, int64(1), again.ID)
}

func TestDatabase_TimesAreStoredInUTC(t *testing.T) {
	ctx := context.Background()
	uow := storagetest.SQLite(t).New()
	user := storagetest.SeedUser(t, ctx, uow, "tz@example.com", "TZ")

	zone := time.FixedZone("UTC+5", 5*60*60)
	now := time.Now().UTC()
	// Written with a +05:00 offset; as text it would sort after now.
	expired := now.Add(-time.Hour).In(zone)
	require.NoError(t, uow.RefreshTokens().Add(ctx, &entities.RefreshToken{Token: "old", ExpiresAt: expired, UserID: user.ID}))
	require.NoError(t, uow.SaveChanges(ctx))

	n, err := uow.RefreshTokens().DeleteWhere(ctx, storage.LessThan("expires_at", now.In(zone)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDatabase_ReadBackInUTC(t *testing.T) {
	ctx := context.Background()
	db := storagetest.SQLite(t)
	_, event := storagetest.SeedEvent(t, ctx, db.New(), "Concert")

	got, err := db.New().Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.UTC, got.DateTime.Location())
	assert.True(t, got.DateTime.Equal(event.DateTime))
}

func TestUnitOfWork_TransactionSerializesWriters(t *testing.T) {
	db := storagetest.SQLite(t)
	ctx := context.Background()
	holder := db.New()
	require.NoError(t, holder.BeginTransaction(ctx))

	other := db.New()
	require.NoError(t, other.Categories().Add(ctx, &entities.Category{Name: "Waiting"}))

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := other.SaveChanges(waitCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err)

	require.NoError(t, holder.CommitTransaction(ctx))
	require.NoError(t, other.Categories().Add(ctx, &entities.Category{Name: "Later"}))
	require.NoError(t, other.SaveChanges(ctx))
}
