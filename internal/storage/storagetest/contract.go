// Package storagetest holds the behavior every storage backend must share
// and a throwaway SQLite database for service tests.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/Togather-Foundation/eventhub/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// OpenFunc returns an empty, migrated database for one test.
type OpenFunc func(t *testing.T) storage.Factory

// RunContract runs the shared storage behavior against the databases open
// returns.
func RunContract(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, db storage.Factory)
	}{
		{"AddAndGetByID", testAddAndGetByID},
		{"WritesAreQueuedUntilSaveChanges", testWritesQueued},
		{"RepositoriesAreCached", testRepositoriesCached},
		{"DuplicateEmail", testDuplicateEmail},
		{"ForeignKeyOnInsert", testForeignKeyOnInsert},
		{"SaveChangesIsAtomic", testSaveChangesAtomic},
		{"CategoryDeleteRestricted", testCategoryDeleteRestricted},
		{"EventDeleteCascadesParticipants", testEventDeleteCascades},
		{"UserDeleteCascadesOwnedRows", testUserDeleteCascades},
		{"ChildDeleteLeavesUnrelatedRows", testChildDeleteLeavesUnrelatedRows},
		{"GetPaged", testGetPaged},
		{"ContainsEscapesWildcards", testContainsEscapesWildcards},
		{"ContainsIsCaseSensitive", testContainsCaseSensitive},
		{"OrderByRelationColumn", testOrderByRelationColumn},
		{"DeleteWhere", testDeleteWhere},
		{"NullableColumns", testNullableColumns},
		{"RollbackDiscardsWrites", testRollbackDiscardsWrites},
		{"WithTransactionCommits", testWithTransactionCommits},
		{"UpdateReplacesFields", testUpdateReplacesFields},
		{"UpdateNamedColumnsOnly", testUpdateNamedColumns},
		{"UnknownField", testUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

// SeedUser stores a user with the given email and last name.
func SeedUser(t *testing.T, ctx context.Context, uow storage.UnitOfWork, email, lastName string) *entities.User {
	t.Helper()
	user := &entities.User{
		FirstName:    "Test",
		LastName:     lastName,
		DateOfBirth:  time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Email:        email,
		PasswordHash: "hash-salt",
		Role:         entities.RoleDefaultUser,
	}
	require.NoError(t, uow.Users().Add(ctx, user))
	require.NoError(t, uow.SaveChanges(ctx))
	require.NotZero(t, user.ID)
	return user
}

// SeedEvent stores an event two days out in a fresh "Music" category.
func SeedEvent(t *testing.T, ctx context.Context, uow storage.UnitOfWork, title string) (*entities.Category, *entities.Event) {
	t.Helper()
	category := &entities.Category{Name: "Music"}
	require.NoError(t, uow.Categories().Add(ctx, category))
	require.NoError(t, uow.SaveChanges(ctx))

	event := &entities.Event{
		Title:           title,
		Description:     "Live",
		Location:        "Hall A",
		DateTime:        time.Now().UTC().Add(48 * time.Hour),
		MaxParticipants: 2,
		CategoryID:      category.ID,
	}
	require.NoError(t, uow.Events().Add(ctx, event))
	require.NoError(t, uow.SaveChanges(ctx))
	return category, event
}

func join(t *testing.T, ctx context.Context, uow storage.UnitOfWork, eventID, userID int64) *entities.Participant {
	t.Helper()
	p := &entities.Participant{EventID: eventID, UserID: userID, RegistrationDate: time.Now().UTC()}
	require.NoError(t, uow.Participants().Add(ctx, p))
	require.NoError(t, uow.SaveChanges(ctx))
	return p
}

func testAddAndGetByID(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()

	first := SeedUser(t, ctx, uow, "ada@example.com", "Lovelace")
	second := SeedUser(t, ctx, uow, "grace@example.com", "Hopper")
	assert.Equal(t, first.ID+1, second.ID)

	got, err := db.New().Users().GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, entities.RoleDefaultUser, got.Role)
	assert.False(t, got.IsEmailConfirmed)
	assert.True(t, got.DateOfBirth.Equal(first.DateOfBirth))

	missing, err := uow.Users().GetByID(ctx, second.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testWritesQueued(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	require.NoError(t, uow.Categories().Add(ctx, &entities.Category{Name: "Queued"}))

	found, err := uow.Categories().Any(ctx, storage.Eq("name", "Queued"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, uow.SaveChanges(ctx))
	found, err = uow.Categories().Any(ctx, storage.Eq("name", "Queued"))
	require.NoError(t, err)
	assert.True(t, found)
}

func testRepositoriesCached(t *testing.T, db storage.Factory) {
	uow := db.New()

	assert.Same(t, uow.Events(), uow.Events())
	assert.NotSame(t, uow.Events(), db.New().Events())
}

func testDuplicateEmail(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	SeedUser(t, ctx, uow, "dup@example.com", "One")

	second := &entities.User{Email: "dup@example.com", LastName: "Two", PasswordHash: "x", DateOfBirth: time.Now().UTC()}
	require.NoError(t, uow.Users().Add(ctx, second))
	require.ErrorIs(t, uow.SaveChanges(ctx), storage.ErrDuplicate)
}

func testForeignKeyOnInsert(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	require.NoError(t, uow.Events().Add(ctx, &entities.Event{
		Title: "Orphan", Location: "Nowhere", DateTime: time.Now().UTC(), CategoryID: 42,
	}))
	require.ErrorIs(t, uow.SaveChanges(ctx), storage.ErrReferenced)
}

func testSaveChangesAtomic(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	require.NoError(t, uow.Categories().Add(ctx, &entities.Category{Name: "First"}))
	require.NoError(t, uow.Events().Add(ctx, &entities.Event{
		Title: "Orphan", Location: "Nowhere", DateTime: time.Now().UTC(), CategoryID: 42,
	}))
	require.Error(t, uow.SaveChanges(ctx))

	all, err := uow.Categories().ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testCategoryDeleteRestricted(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	category, event := SeedEvent(t, ctx, uow, "Concert")

	require.NoError(t, uow.Categories().Delete(ctx, category))
	require.ErrorIs(t, uow.SaveChanges(ctx), storage.ErrReferenced)

	still, err := db.New().Categories().GetByID(ctx, category.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)

	require.NoError(t, uow.Events().Delete(ctx, event))
	require.NoError(t, uow.Categories().Delete(ctx, category))
	require.NoError(t, uow.SaveChanges(ctx))
}

func testEventDeleteCascades(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	user := SeedUser(t, ctx, uow, "p@example.com", "P")
	_, event := SeedEvent(t, ctx, uow, "Concert")
	join(t, ctx, uow, event.ID, user.ID)

	require.NoError(t, uow.Events().Delete(ctx, event))
	require.NoError(t, uow.SaveChanges(ctx))

	exists, err := uow.Participants().Any(ctx, storage.Eq("event_id", event.ID))
	require.NoError(t, err)
	assert.False(t, exists)

	kept, err := uow.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func testUserDeleteCascades(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	user := SeedUser(t, ctx, uow, "gone@example.com", "Gone")
	_, event := SeedEvent(t, ctx, uow, "Concert")
	join(t, ctx, uow, event.ID, user.ID)
	require.NoError(t, uow.RefreshTokens().Add(ctx, &entities.RefreshToken{
		Token: "t", ExpiresAt: time.Now().UTC().Add(time.Hour), UserID: user.ID,
	}))
	require.NoError(t, uow.SaveChanges(ctx))

	require.NoError(t, uow.Users().Delete(ctx, user))
	require.NoError(t, uow.SaveChanges(ctx))

	participants, err := uow.Participants().ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, participants)
	tokens, err := uow.RefreshTokens().ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, tokens)

	kept, err := uow.Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

// Deleting a participant or refresh token removes that row only, even when
// its ID equals foreign key values held by other rows.
func testChildDeleteLeavesUnrelatedRows(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	first := SeedUser(t, ctx, uow, "one@example.com", "One")
	second := SeedUser(t, ctx, uow, "two@example.com", "Two")
	_, concert := SeedEvent(t, ctx, uow, "Concert")
	_, lecture := SeedEvent(t, ctx, uow, "Lecture")

	doomed := join(t, ctx, uow, concert.ID, first.ID)
	join(t, ctx, uow, concert.ID, second.ID)
	join(t, ctx, uow, lecture.ID, first.ID)
	join(t, ctx, uow, lecture.ID, second.ID)

	var tokens []*entities.RefreshToken
	for _, owner := range []int64{first.ID, first.ID, second.ID} {
		tok := &entities.RefreshToken{
			Token: fmt.Sprintf("tok-%d-%d", owner, len(tokens)), ExpiresAt: time.Now().UTC().Add(time.Hour), UserID: owner,
		}
		require.NoError(t, uow.RefreshTokens().Add(ctx, tok))
		tokens = append(tokens, tok)
	}
	require.NoError(t, uow.SaveChanges(ctx))
	require.Equal(t, first.ID, doomed.ID, "participant ID collides with a user and event ID")
	require.Equal(t, first.ID, tokens[0].ID, "token ID collides with a user ID")

	require.NoError(t, uow.Participants().Delete(ctx, doomed))
	require.NoError(t, uow.RefreshTokens().Delete(ctx, tokens[0]))
	require.NoError(t, uow.SaveChanges(ctx))

	participants, err := uow.Participants().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, participants, 3)
	for _, p := range participants {
		assert.NotEqual(t, doomed.ID, p.ID)
	}

	left, err := uow.RefreshTokens().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 2)

	users, err := uow.Users().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	events, err := uow.Events().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func testGetPaged(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	for i := 0; i < 15; i++ {
		require.NoError(t, uow.Categories().Add(ctx, &entities.Category{Name: fmt.Sprintf("cat-%02d", i)}))
	}
	require.NoError(t, uow.SaveChanges(ctx))

	page, err := uow.Categories().GetPaged(ctx, 2, 10, storage.Query{}.Sorted(storage.Asc("name")))
	require.NoError(t, err)
	assert.Equal(t, int64(15), page.TotalCount)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "cat-10", page.Items[0].Name)
	assert.Equal(t, 2, page.PageNumber)
	assert.Equal(t, 10, page.PageSize)

	desc, err := uow.Categories().GetPaged(ctx, 2, 10, storage.Query{}.Sorted(storage.Desc("name")))
	require.NoError(t, err)
	require.Len(t, desc.Items, 5)
	assert.Equal(t, "cat-04", desc.Items[0].Name)

	beyond, err := uow.Categories().GetPaged(ctx, 5, 10, storage.Query{})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, int64(15), beyond.TotalCount)

	_, err = uow.Categories().GetPaged(ctx, 0, 10, storage.Query{})
	require.ErrorIs(t, err, storage.ErrInvalidPage)
	_, err = uow.Categories().GetPaged(ctx, 1, 0, storage.Query{})
	require.ErrorIs(t, err, storage.ErrInvalidPage)
}

func testContainsEscapesWildcards(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	for _, name := range []string{"100% fun", "100 fun", "late_night", "latenight"} {
		require.NoError(t, uow.Categories().Add(ctx, &entities.Category{Name: name}))
	}
	require.NoError(t, uow.SaveChanges(ctx))

	got, err := uow.Categories().List(ctx, storage.Filter(storage.Contains("name", "0%")))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100% fun", got[0].Name)

	got, err = uow.Categories().List(ctx, storage.Filter(storage.Contains("name", "e_n")))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "late_night", got[0].Name)
}

func testContainsCaseSensitive(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	require.NoError(t, uow.Categories().Add(ctx, &entities.Category{Name: "Jazz"}))
	require.NoError(t, uow.SaveChanges(ctx))

	lower, err := uow.Categories().Any(ctx, storage.Contains("name", "jazz"))
	require.NoError(t, err)
	assert.False(t, lower)

	exact, err := uow.Categories().Any(ctx, storage.Contains("name", "Jaz"))
	require.NoError(t, err)
	assert.True(t, exact)
}

func testOrderByRelationColumn(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	_, event := SeedEvent(t, ctx, uow, "Concert")
	for _, last := range []string{"Young", "Adams", "Miller"} {
		user := SeedUser(t, ctx, uow, last+"@example.com", last)
		join(t, ctx, uow, event.ID, user.ID)
	}

	page, err := uow.Participants().GetPaged(ctx, 1, 10,
		storage.Filter(storage.Eq("event_id", event.ID)).Sorted(storage.Asc("User.last_name")).Including("User"))
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	var names []string
	for _, p := range page.Items {
		require.NotNil(t, p.User)
		names = append(names, p.User.LastName)
	}
	assert.Equal(t, []string{"Adams", "Miller", "Young"}, names)

	desc, err := uow.Participants().List(ctx,
		storage.Filter(storage.Eq("event_id", event.ID)).Sorted(storage.Desc("User.last_name")).Including("User", "Event"))
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, "Young", desc[0].User.LastName)
	require.NotNil(t, desc[0].Event)
	assert.Equal(t, "Concert", desc[0].Event.Title)

	_, err = uow.Users().List(ctx, storage.Filter(storage.Eq("User.email", "x")))
	require.ErrorIs(t, err, storage.ErrUnknownField)
}

func testDeleteWhere(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	user := SeedUser(t, ctx, uow, "t@example.com", "T")
	now := time.Now().UTC()
	for _, d := range []time.Duration{-2 * time.Hour, -time.Minute, time.Hour} {
		require.NoError(t, uow.RefreshTokens().Add(ctx, &entities.RefreshToken{Token: d.String(), ExpiresAt: now.Add(d), UserID: user.ID}))
	}
	require.NoError(t, uow.SaveChanges(ctx))

	n, err := uow.RefreshTokens().DeleteWhere(ctx, storage.LessThan("expires_at", now))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := uow.RefreshTokens().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, time.Hour.String(), left[0].Token)

	_, err = uow.RefreshTokens().DeleteWhere(ctx)
	require.Error(t, err)
	_, err = uow.RefreshTokens().DeleteWhere(ctx, storage.Eq("User.email", "t@example.com"))
	require.ErrorIs(t, err, storage.ErrUnknownField)
}

func testNullableColumns(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	_, event := SeedEvent(t, ctx, uow, "NoImage")

	none, err := uow.Events().Any(ctx, storage.Eq("image_path", nil))
	require.NoError(t, err)
	assert.True(t, none)

	path := "/images/event_1.png"
	event.ImagePath = &path
	require.NoError(t, uow.Events().Update(ctx, event))
	require.NoError(t, uow.SaveChanges(ctx))

	got, err := uow.Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ImagePath)
	assert.Equal(t, "/images/event_1.png", *got.ImagePath)
}

func testRollbackDiscardsWrites(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()

	require.NoError(t, uow.BeginTransaction(ctx))
	require.ErrorIs(t, uow.BeginTransaction(ctx), storage.ErrTransactionActive)
	require.NoError(t, uow.Categories().Add(ctx, &entities.Category{Name: "Ephemeral"}))
	require.NoError(t, uow.SaveChanges(ctx))

	inside, err := uow.Categories().Any(ctx, storage.Eq("name", "Ephemeral"))
	require.NoError(t, err)
	assert.True(t, inside)

	require.NoError(t, uow.RollbackTransaction(ctx))
	after, err := uow.Categories().Any(ctx, storage.Eq("name", "Ephemeral"))
	require.NoError(t, err)
	assert.False(t, after)

	require.NoError(t, uow.CommitTransaction(ctx), "commit without a transaction is a no-op")
	require.NoError(t, uow.RollbackTransaction(ctx))
}

func testWithTransactionCommits(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()

	err := storage.WithTransaction(ctx, uow, func(ctx context.Context) error {
		if err := uow.Categories().Add(ctx, &entities.Category{Name: "Kept"}); err != nil {
			return err
		}
		return uow.SaveChanges(ctx)
	})
	require.NoError(t, err)

	kept, err := db.New().Categories().Any(ctx, storage.Eq("name", "Kept"))
	require.NoError(t, err)
	assert.True(t, kept)
}

func testUpdateReplacesFields(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	uow := db.New()
	_, event := SeedEvent(t, ctx, uow, "Old")

	event.Title = "New"
	event.Description = ""
	require.NoError(t, uow.Events().Update(ctx, event))
	require.NoError(t, uow.SaveChanges(ctx))

	got, err := db.New().Events().GetByID(ctx, event.ID, "Category")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New", got.Title)
	assert.Empty(t, got.Description)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Music", got.Category.Name)
}

func testUnknownField(t *testing.T, db storage.Factory) {
	_, err := db.New().Events().List(context.Background(), storage.Filter(storage.Eq("nope", 1)))
	require.ErrorIs(t, err, storage.ErrUnknownField)
}

func testUpdateNamedColumns(t *testing.T, db storage.Factory) {
	ctx := context.Background()
	_, event := SeedEvent(t, ctx, db.New(), "Old")

	stale, err := db.New().Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stale)

	path := "/images/event_1.png"
	event.ImagePath = &path
	writer := db.New()
	require.NoError(t, writer.Events().Update(ctx, event, "image_path"))
	require.NoError(t, writer.SaveChanges(ctx))

	stale.Title = "New"
	uow := db.New()
	require.NoError(t, uow.Events().Update(ctx, stale, "title", "description"))
	require.NoError(t, uow.SaveChanges(ctx))

	got, err := db.New().Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New", got.Title)
	require.NotNil(t, got.ImagePath, "columns not named are left alone")
	assert.Equal(t, path, *got.ImagePath)

	require.ErrorIs(t, uow.Events().Update(ctx, stale, "nope"), storage.ErrUnknownField)
	require.ErrorIs(t, uow.Events().Update(ctx, stale, "Category.name"), storage.ErrUnknownField)
}
