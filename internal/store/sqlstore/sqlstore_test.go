package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynotion/internal/model"
	"studynotion/internal/store"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	repo := New(db)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func testUser(id, email string) model.User {
	return model.User{
		ID:           id,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        email,
		PasswordHash: "hash",
		AccountType:  model.AccountStudent,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestRebindDollar(t *testing.T) {
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", rebindDollar("SELECT 1 WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1", rebindDollar("SELECT 1"))
}

func TestUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, testUser("u1", "Ada@Example.com")))

	got, err := repo.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, model.AccountStudent, got.AccountType)

	err = repo.CreateUser(ctx, testUser("u2", "ADA@example.com"))
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	_, err = repo.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	updated, err := repo.UpdateUserName(ctx, "u1", "Augusta", "King")
	require.NoError(t, err)
	assert.Equal(t, "Augusta", updated.FirstName)
	assert.Equal(t, "King", updated.LastName)

	_, err = repo.UpdateUserName(ctx, "missing", "a", "b")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, testUser("u1", "a@b.c")))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.CreateSession(ctx, model.Session{ID: "s1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	s, err := repo.SessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, s.Active(now))

	require.NoError(t, repo.RevokeSession(ctx, "s1"))
	s, err = repo.SessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, s.Active(now))

	assert.ErrorIs(t, repo.RevokeSession(ctx, "s1"), store.ErrSessionRevoked)
	assert.ErrorIs(t, repo.RevokeSession(ctx, "nope"), store.ErrNotFound)
}

func TestRevokeSessionHasOneWinner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, testUser("u1", "a@b.c")))
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.CreateSession(ctx, model.Session{ID: "s1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	var wins, lost atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.RevokeSession(ctx, "s1")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, store.ErrSessionRevoked):
				lost.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(7), lost.Load())
}

func TestHistoryOrderingAndPayload(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entries := []model.HistoryEntry{
		{ID: "h1", UserID: "u1", Type: model.EntryChat, CreatedAt: 100, Question: "q1", Answer: "a1"},
		{ID: "h2", UserID: "u1", Type: model.EntryQuiz, CreatedAt: 200, Topic: "go",
			Result: model.Quiz{{Q: "?", Options: []string{"a", "b"}, Answer: 1}}},
		{ID: "h3", UserID: "u1", Type: model.EntrySummary, CreatedAt: 200, Text: "long", Summary: "short"},
		{ID: "h4", UserID: "u2", Type: model.EntryChat, CreatedAt: 300, Question: "other"},
	}
	for _, e := range entries {
		require.NoError(t, repo.AppendHistory(ctx, e))
	}

	got, err := repo.ListHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"h3", "h2", "h1"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "short", got[0].Summary)
	assert.Equal(t, model.Quiz{{Q: "?", Options: []string{"a", "b"}, Answer: 1}}, got[1].Result)
	assert.Equal(t, "a1", got[2].Answer)

	empty, err := repo.ListHistory(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
