package users

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/storage/sqlite"
	"github.com/Togather-Foundation/eventhub/internal/storage/storagetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *Service
	store *sqlite.Database
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storagetest.SQLite(t)
	return &fixture{svc: NewService(store, zerolog.Nop()), store: store}
}

func (f *fixture) user(t *testing.T, email, last string, born time.Time, role entities.Role) *entities.User {
	t.Helper()
	ctx := context.Background()
	uow := f.store.New()
	u := &entities.User{FirstName: "Test", LastName: last, Email: email, PasswordHash: "hash", DateOfBirth: born, Role: role}
	require.NoError(t, uow.Users().Add(ctx, u))
	require.NoError(t, uow.SaveChanges(ctx))
	return u
}

func (f *fixture) event(t *testing.T, category, title string, max int) *entities.Event {
	t.Helper()
	ctx := context.Background()
	uow := f.store.New()
	c := &entities.Category{Name: category}
	require.NoError(t, uow.Categories().Add(ctx, c))
	require.NoError(t, uow.SaveChanges(ctx))
	e := &entities.Event{Title: title, Location: "Hall", DateTime: time.Now().Add(72 * time.Hour), MaxParticipants: max, CategoryID: c.ID}
	require.NoError(t, uow.Events().Add(ctx, e))
	require.NoError(t, uow.SaveChanges(ctx))
	return e
}

var born = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAddParticipant_MusicConcertScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	concert := f.event(t, "Music", "Concert", 2)
	u1 := f.user(t, "u1@example.com", "One", born, entities.RoleDefaultUser)
	u2 := f.user(t, "u2@example.com", "Two", born, entities.RoleDefaultUser)
	u3 := f.user(t, "u3@example.com", "Three", born, entities.RoleDefaultUser)

	require.NoError(t, f.svc.AddParticipant(ctx, u1.ID, concert.ID))
	require.NoError(t, f.svc.AddParticipant(ctx, u2.ID, concert.ID))
	require.ErrorIs(t, f.svc.AddParticipant(ctx, u3.ID, concert.ID), ErrCapacityReached)

	users, err := f.svc.ListEventUsers(ctx, concert.ID)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, f.svc.RemoveParticipant(ctx, u1.ID, concert.ID))
	require.NoError(t, f.svc.AddParticipant(ctx, u3.ID, concert.ID))

	users, err = f.svc.ListEventUsers(ctx, concert.ID)
	require.NoError(t, err)
	var emails []string
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	assert.ElementsMatch(t, []string{"u2@example.com", "u3@example.com"}, emails)
}

func TestAddParticipant_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, "Music", "Concert", 5)
	u := f.user(t, "u@example.com", "User", born, entities.RoleDefaultUser)

	require.NoError(t, f.svc.AddParticipant(ctx, u.ID, e.ID))
	require.NoError(t, f.svc.AddParticipant(ctx, u.ID, e.ID))

	rows, err := f.store.New().Participants().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAddParticipant_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, "Music", "Concert", 5)
	u := f.user(t, "u@example.com", "User", born, entities.RoleDefaultUser)
	admin := f.user(t, "admin@example.com", "Admin", born, entities.RoleAdmin)

	assert.ErrorIs(t, f.svc.AddParticipant(ctx, 999, e.ID), ErrInvalidUser)
	assert.ErrorIs(t, f.svc.AddParticipant(ctx, admin.ID, e.ID), ErrInvalidUser)
	assert.ErrorIs(t, f.svc.AddParticipant(ctx, u.ID, 999), ErrInvalidEvent)
	assert.ErrorIs(t, f.svc.RemoveParticipant(ctx, u.ID, 999), ErrInvalidEvent)
}

func TestRemoveParticipant_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, "Music", "Concert", 5)
	u := f.user(t, "u@example.com", "User", born, entities.RoleDefaultUser)

	require.NoError(t, f.svc.RemoveParticipant(ctx, u.ID, e.ID))
	require.NoError(t, f.svc.AddParticipant(ctx, u.ID, e.ID))
	require.NoError(t, f.svc.RemoveParticipant(ctx, u.ID, e.ID))
	require.NoError(t, f.svc.RemoveParticipant(ctx, u.ID, e.ID))

	users, err := f.svc.ListEventUsers(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestAddParticipant_ConcurrentJoinsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, "Music", "Concert", 3)

	const joiners = 20
	ids := make([]int64, joiners)
	for i := range ids {
		ids[i] = f.user(t, fmt.Sprintf("u%d@example.com", i), "User", born, entities.RoleDefaultUser).ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			err := f.svc.AddParticipant(ctx, id, e.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case assert.ErrorIs(t, err, ErrCapacityReached):
				rejected++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, joiners-3, rejected)
	rows, err := f.store.New().Participants().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Zero(t, f.svc.locks.size())
}

func TestListEventUsersPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, "Music", "Concert", 20)
	for i := 0; i < 15; i++ {
		u := f.user(t, fmt.Sprintf("user%02d@example.com", i), fmt.Sprintf("Last%02d", 14-i), born.AddDate(i, 0, 0), entities.RoleDefaultUser)
		require.NoError(t, f.svc.AddParticipant(ctx, u.ID, e.ID))
	}
	other := f.event(t, "Arts", "Gallery", 5)
	stranger := f.user(t, "stranger@example.com", "Stranger", born, entities.RoleDefaultUser)
	require.NoError(t, f.svc.AddParticipant(ctx, stranger.ID, other.ID))

	page, err := f.svc.ListEventUsersPage(ctx, e.ID, SortLastName, false, 2, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 15, page.TotalCount)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "Last10", page.Items[0].LastName)

	byEmail, err := f.svc.ListEventUsersPage(ctx, e.ID, SortEmail, true, 1, 2)
	require.NoError(t, err)
	require.Len(t, byEmail.Items, 2)
	assert.Equal(t, "user14@example.com", byEmail.Items[0].Email)

	byAge, err := f.svc.ListEventUsersPage(ctx, e.ID, SortDateOfBirth, false, 1, 1)
	require.NoError(t, err)
	require.Len(t, byAge.Items, 1)
	assert.Equal(t, "user00@example.com", byAge.Items[0].Email)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "u@example.com", "User", born, entities.RoleDefaultUser)

	got, err := f.svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "u@example.com", got.Email)

	_, err = f.svc.GetUser(ctx, u.ID+1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseSortField(t *testing.T) {
	got, ok := ParseSortField("")
	assert.True(t, ok)
	assert.Equal(t, SortLastName, got)

	got, ok = ParseSortField("Email")
	assert.True(t, ok)
	assert.Equal(t, SortEmail, got)

	_, ok = ParseSortField("password_hash")
	assert.False(t, ok)
}

func TestEventLocks_ContextCancelled(t *testing.T) {
	locks := newEventLocks()
	unlock, err := locks.lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locks.lock(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)

	unlock()
	assert.Zero(t, locks.size())
}
