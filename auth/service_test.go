package auth

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"rewind/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuth(t *testing.T) *Service {
	t.Helper()

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "rewind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewService(store)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := setupAuth(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "s3cret", false)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	logged, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotNil(t, logged)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.EqualError(t, err, "invalid credentials")
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	svc := setupAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ab", "s3cret", false)
	assert.Error(t, err)

	_, err = svc.Register(ctx, "1starts_with_digit", "s3cret", false)
	assert.Error(t, err)

	_, err = svc.Register(ctx, "carol", "abc", false)
	assert.Error(t, err)

	_, err = svc.Register(ctx, "carol", " spaced ", false)
	assert.Error(t, err)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := setupAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dave", "s3cret", false)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "dave", "other5", false)
	assert.ErrorContains(t, err, "already taken")
}

func TestChangePassword(t *testing.T) {
	svc := setupAuth(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "erin", "first1", false)
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "wrong", "second")
	assert.EqualError(t, err, "current password is incorrect")

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "first1", "second"))

	_, err = svc.Login(ctx, "erin", "second")
	assert.NoError(t, err)
	_, err = svc.Login(ctx, "erin", "first1")
	assert.Error(t, err)
}

func TestAPIKeyRoundTrip(t *testing.T) {
	svc := setupAuth(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "frank", "s3cret", false)
	require.NoError(t, err)

	key, err := svc.GenerateAPIKey(ctx, user.ID)
	require.NoError(t, err)
	assert.Contains(t, key, "rwk_")

	logged, err := svc.LoginWithAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	require.NoError(t, svc.RevokeAPIKey(ctx, user.ID))
	_, err = svc.LoginWithAPIKey(ctx, key)
	assert.EqualError(t, err, "invalid credentials")
}

func TestBootstrapIdempotent(t *testing.T) {
	svc := setupAuth(t)
	ctx := context.Background()

	first, err := svc.Bootstrap(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, DefaultAdminUsername, first.Username)
	assert.True(t, first.IsAdmin)

	second, err := svc.Bootstrap(ctx, "different")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// original password still valid
	_, err = svc.Login(ctx, DefaultAdminUsername, "admin")
	assert.NoError(t, err)
}

func TestResolveOwner(t *testing.T) {
	svc := setupAuth(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "grace", "s3cret", false)
	require.NoError(t, err)
	key, err := svc.GenerateAPIKey(ctx, user.ID)
	require.NoError(t, err)

	byID, err := svc.ResolveOwner(ctx, strconv.FormatInt(user.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, user.ID, byID)

	byName, err := svc.ResolveOwner(ctx, "grace")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName)

	byKey, err := svc.ResolveOwner(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byKey)

	_, err = svc.ResolveOwner(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrInvalidOwner)
	_, err = svc.ResolveOwner(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidOwner)
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("abc"))
	assert.NoError(t, ValidateUsername("a_1_b"))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("_leading"))
	assert.Error(t, ValidateUsername("has space"))
	assert.Error(t, ValidateUsername("a"+strings.Repeat("b", 30)))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("12345"))
	assert.Error(t, ValidatePassword("1234"))
	assert.Error(t, ValidatePassword(" lead"))
	assert.Error(t, ValidatePassword("trail "))
}
