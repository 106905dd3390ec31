package categories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/storage/sqlite"
	"github.com/Togather-Foundation/eventhub/internal/storage/storagetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *sqlite.Database) {
	t.Helper()
	store := storagetest.SQLite(t)
	return NewService(store, zerolog.Nop()), store
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "  <b>Music</b> ")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Music", created.Name)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Music", got.Name)

	_, err = svc.Get(ctx, created.ID+100)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListPage(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		_, err := svc.Create(ctx, fmt.Sprintf("Category %02d", i))
		require.NoError(t, err)
	}

	page, err := svc.ListPage(ctx, 2, 10, "", false)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.EqualValues(t, 15, page.TotalCount)
	assert.Equal(t, 2, page.PageNumber)
	assert.Equal(t, "Category 10", page.Items[0].Name)

	desc, err := svc.ListPage(ctx, 1, 3, "", true)
	require.NoError(t, err)
	require.Len(t, desc.Items, 3)
	assert.Equal(t, "Category 14", desc.Items[0].Name)
}

func TestListPage_Search(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, name := range []string{"Music", "Theatre", "Musicals"} {
		_, err := svc.Create(ctx, name)
		require.NoError(t, err)
	}

	page, err := svc.ListPage(ctx, 1, 10, "Music", false)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Music", page.Items[0].Name)
	assert.Equal(t, "Musicals", page.Items[1].Name)

	blank, err := svc.ListPage(ctx, 1, 10, "   ", false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, blank.TotalCount)
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "Music")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, "Jazz")
	require.NoError(t, err)
	assert.Equal(t, "Jazz", updated.Name)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz", got.Name)

	_, err = svc.Update(ctx, 999, "Nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, 42), ErrNotFound)

	used, err := svc.Create(ctx, "Music")
	require.NoError(t, err)
	unused, err := svc.Create(ctx, "Theatre")
	require.NoError(t, err)

	uow := store.New()
	require.NoError(t, uow.Events().Add(ctx, &entities.Event{
		Title:           "Concert",
		Location:        "Hall",
		DateTime:        time.Now().Add(48 * time.Hour),
		MaxParticipants: 1,
		CategoryID:      used.ID,
	}))
	require.NoError(t, uow.SaveChanges(ctx))

	require.ErrorIs(t, svc.Delete(ctx, used.ID), ErrInUse)
	require.NoError(t, svc.Delete(ctx, unused.ID))

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Music", all[0].Name)
}
