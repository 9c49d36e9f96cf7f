package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usersapp/internal/database"
	"usersapp/internal/ids"
	"usersapp/internal/models"
)

func newTestRepo(t *testing.T) *SQLiteUserRepository {
	t.Helper()

	db, err := database.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return NewSQLiteUserRepository(db)
}

func strPtr(s string) *string { return &s }

func TestSQLiteUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.Create(ctx, models.NewUser{
		Name:         "Ana",
		Email:        "ana@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	assert.True(t, ids.IsUUID(created.ID))
	assert.Equal(t, "Ana", created.Name)
	assert.False(t, created.CreatedAt.IsZero())
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)
	assert.Equal(t, "hash", byID.PasswordHash)
	assert.True(t, created.CreatedAt.Equal(byID.CreatedAt))

	byEmail, err := repo.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestSQLiteUserRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.FindByID(ctx, ids.NewUserID())
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.Update(ctx, ids.NewUserID(), models.UserChanges{Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = repo.Delete(ctx, ids.NewUserID())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLiteUserRepository_CreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := repo.Create(ctx, models.NewUser{Name: "Ana", Email: "ana@example.com", PasswordHash: "h1"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, models.NewUser{Name: "Other", Email: "ana@example.com", PasswordHash: "h2"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	stored, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", stored.Name)
	assert.Equal(t, "h1", stored.PasswordHash)
}

func TestSQLiteUserRepository_ConcurrentCreateSameEmail(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, models.NewUser{Name: "Ana", Email: "race@example.com", PasswordHash: "h"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrEmailTaken)
	}
	assert.Equal(t, 1, succeeded)
}

func TestSQLiteUserRepository_UpdatePartial(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.Create(ctx, models.NewUser{Name: "Ana", Email: "ana@example.com", PasswordHash: "h1"})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, created.ID, models.UserChanges{PasswordHash: strPtr("h2")})
	require.NoError(t, err)

	assert.Equal(t, "Ana", updated.Name)
	assert.Equal(t, "ana@example.com", updated.Email)
	assert.Equal(t, "h2", updated.PasswordHash)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", stored.PasswordHash)
	assert.True(t, stored.UpdatedAt.Equal(updated.UpdatedAt))
}

func TestSQLiteUserRepository_UpdateNothing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.Create(ctx, models.NewUser{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	same, err := repo.Update(ctx, created.ID, models.UserChanges{})
	require.NoError(t, err)
	assert.True(t, same.UpdatedAt.Equal(created.UpdatedAt))

	_, err = repo.Update(ctx, ids.NewUserID(), models.UserChanges{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLiteUserRepository_UpdatedAtStrictlyIncreases(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	frozen := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.clock = func() time.Time { return frozen }

	created, err := repo.Create(ctx, models.NewUser{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, created.ID, models.UserChanges{Name: strPtr("Ana B")})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestSQLiteUserRepository_UpdateEmail(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	ana, err := repo.Create(ctx, models.NewUser{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.NewUser{Name: "Bia", Email: "bia@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = repo.Update(ctx, ana.ID, models.UserChanges{Email: strPtr("bia@example.com")})
	assert.ErrorIs(t, err, ErrEmailTaken)

	// keeping one's own email is not a conflict
	same, err := repo.Update(ctx, ana.ID, models.UserChanges{Email: strPtr("ana@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", same.Email)

	moved, err := repo.Update(ctx, ana.ID, models.UserChanges{Email: strPtr("ana.new@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "ana.new@example.com", moved.Email)

	_, err = repo.FindByEmail(ctx, "ana@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLiteUserRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	ana, err := repo.Create(ctx, models.NewUser{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, ana.ID))

	_, err = repo.FindByID(ctx, ana.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, ana.ID), ErrUserNotFound)
}

func TestSQLiteUserRepository_ListByCreatedDesc(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	empty, err := repo.ListByCreatedDesc(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var created []models.User
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		at := base.Add(time.Duration(i) * time.Second)
		repo.clock = func() time.Time { return at }
		u, err := repo.Create(ctx, models.NewUser{Name: email, Email: email, PasswordHash: "h"})
		require.NoError(t, err)
		created = append(created, u)
	}

	users, err := repo.ListByCreatedDesc(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, created[2].ID, users[0].ID)
	assert.Equal(t, created[1].ID, users[1].ID)
	assert.Equal(t, created[0].ID, users[2].ID)
}

func TestSQLiteUserRepository_Ping(t *testing.T) {
	assert.NoError(t, newTestRepo(t).Ping(context.Background()))
}
