package storage

import (
	"context"
	"path/filepath"
	"testing"

	"rewind/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a store backed by a temporary database
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "rewind.db")
	store, err := NewStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// seedUser creates a test user and returns its ID
func seedUser(t *testing.T, store *Store) int64 {
	t.Helper()

	user, err := store.CreateUser(context.Background(), domain.User{
		Username:     "tester_" + uuid.NewString()[:8],
		PasswordHash: "not-a-real-hash",
	})
	require.NoError(t, err)
	return user.ID
}

// seedSession creates a user, external session, and root internal session
func seedSession(t *testing.T, store *Store) (int64, *domain.InternalSession) {
	t.Helper()

	ctx := context.Background()
	userID := seedUser(t, store)
	external, err := store.CreateExternalSession(ctx, userID, "test session")
	require.NoError(t, err)
	internal, err := store.CreateInternalSession(ctx, external.ID, nil, nil, nil)
	require.NoError(t, err)
	return external.ID, internal
}
