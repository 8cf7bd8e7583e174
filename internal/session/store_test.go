// ABOUTME: Tests for the SQLite session store
// ABOUTME: Verifies save/load round-trips, replacement, clearing, and expiry checks

package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "session.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	err := s.Save(ctx, &Session{
		UserID:       "u1",
		Email:        "maria@example.com",
		AccessToken:  "tok-123",
		RefreshToken: "ref-123",
		ExpiresAt:    expires,
	})
	require.NoError(t, err)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.UserID)
	assert.Equal(t, "maria@example.com", loaded.Email)
	assert.Equal(t, "tok-123", loaded.AccessToken)
	assert.Equal(t, "ref-123", loaded.RefreshToken)
	assert.True(t, loaded.ExpiresAt.Equal(expires))
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestStore_LoadEmpty(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Session{UserID: "u1", Email: "a@b.com", AccessToken: "old", RefreshToken: "r1", ExpiresAt: time.Now()}))
	require.NoError(t, s.Save(ctx, &Session{UserID: "u2", Email: "c@d.com", AccessToken: "new", RefreshToken: "r2", ExpiresAt: time.Now()}))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u2", loaded.UserID)
	assert.Equal(t, "new", loaded.AccessToken)
}

func TestStore_Clear(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Session{UserID: "u1", Email: "a@b.com", AccessToken: "t", RefreshToken: "r", ExpiresAt: time.Now()}))
	require.NoError(t, s.Clear(ctx))

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	// Clearing twice is fine.
	require.NoError(t, s.Clear(ctx))
}

func TestSession_Expired(t *testing.T) {
	fresh := &Session{ExpiresAt: time.Now().Add(time.Hour)}
	assert.False(t, fresh.Expired())

	stale := &Session{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, stale.Expired())

	// Within the one-minute grace window counts as expired.
	closeCall := &Session{ExpiresAt: time.Now().Add(30 * time.Second)}
	assert.True(t, closeCall.Expired())
}
