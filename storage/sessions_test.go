package storage

import (
	"context"
	"testing"

	"rewind/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateExternalSession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, store)

	external, err := store.CreateExternalSession(ctx, userID, "support chat")
	require.NoError(t, err)
	assert.Equal(t, "support chat", external.Name)
	assert.Equal(t, userID, external.UserID)
	assert.True(t, external.IsActive)
	assert.Nil(t, external.CurrentSessionID)
	assert.Equal(t, 0, external.BranchCount)
}

func TestCreateExternalSessionUnknownUser(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.CreateExternalSession(context.Background(), 777, "orphan")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateInternalSessionRoot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, store)
	external, err := store.CreateExternalSession(ctx, userID, "chat")
	require.NoError(t, err)

	internal, err := store.CreateInternalSession(ctx, external.ID, nil, nil, []byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, internal.ParentSessionID)
	assert.Nil(t, internal.BranchCheckpoint)
	assert.True(t, internal.IsCurrent)
	assert.False(t, internal.IsBranch())
	assert.NotEmpty(t, internal.RuntimeID)

	got, err := store.GetExternalSession(ctx, external.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentSessionID)
	assert.Equal(t, internal.ID, *got.CurrentSessionID)
	assert.Equal(t, 1, got.BranchCount)
}

func TestCreateBranchValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, root := seedSession(t, store)

	cp, err := store.Commit(ctx, root.ID, "fork", nil, ports.CheckpointOptions{})
	require.NoError(t, err)

	// a branch checkpoint must belong to the named parent
	_, other := seedSession(t, store)
	_, err = store.CreateInternalSession(ctx, externalID, &other.ID, &cp.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidBranchPoint)

	// a checkpoint without a parent is meaningless
	_, err = store.CreateInternalSession(ctx, externalID, nil, &cp.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidBranchPoint)

	branch, err := store.CreateInternalSession(ctx, externalID, &root.ID, &cp.ID, []byte(`{"x":1}`))
	require.NoError(t, err)
	assert.True(t, branch.IsBranch())
	require.NotNil(t, branch.BranchCheckpoint)
	assert.Equal(t, cp.ID, *branch.BranchCheckpoint)
}

func TestCreateInternalSessionSwitchesCurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, root := seedSession(t, store)

	branch, err := store.CreateInternalSession(ctx, externalID, &root.ID, nil, nil)
	require.NoError(t, err)
	assert.True(t, branch.IsCurrent)

	previous, err := store.GetInternalSession(ctx, root.ID)
	require.NoError(t, err)
	assert.False(t, previous.IsCurrent)
}

func TestLineage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, root := seedSession(t, store)

	child, err := store.CreateInternalSession(ctx, externalID, &root.ID, nil, nil)
	require.NoError(t, err)
	grandchild, err := store.CreateInternalSession(ctx, externalID, &child.ID, nil, nil)
	require.NoError(t, err)

	lineage, err := store.Lineage(ctx, grandchild.ID)
	require.NoError(t, err)
	require.Len(t, lineage, 3)
	assert.Equal(t, root.ID, lineage[0].ID)
	assert.Equal(t, child.ID, lineage[1].ID)
	assert.Equal(t, grandchild.ID, lineage[2].ID)
}

func TestResumeLatest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, root := seedSession(t, store)

	branch, err := store.CreateInternalSession(ctx, externalID, &root.ID, nil, nil)
	require.NoError(t, err)

	resumed, err := store.ResumeLatest(ctx, externalID)
	require.NoError(t, err)
	assert.Equal(t, branch.ID, resumed.ID)

	// switching current changes what resume picks up
	require.NoError(t, store.SetCurrentSession(ctx, root.ID))
	resumed, err = store.ResumeLatest(ctx, externalID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, resumed.ID)
}

func TestResumeLatestNoSessions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, store)
	external, err := store.CreateExternalSession(ctx, userID, "empty")
	require.NoError(t, err)

	_, err = store.ResumeLatest(ctx, external.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdateSnapshot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, session := seedSession(t, store)

	require.NoError(t, store.UpdateSnapshot(ctx, session.ID, []byte(`{"turn":2}`)))

	got, err := store.GetInternalSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"turn":2}`), got.StateSnapshot)
}

func TestDeleteInternalSessionWithBranches(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, root := seedSession(t, store)

	branch, err := store.CreateInternalSession(ctx, externalID, &root.ID, nil, nil)
	require.NoError(t, err)

	err = store.DeleteInternalSession(ctx, root.ID)
	assert.ErrorIs(t, err, ErrSessionHasBranches)

	require.NoError(t, store.DeleteInternalSession(ctx, branch.ID))
	require.NoError(t, store.DeleteInternalSession(ctx, root.ID))
}

func TestDeleteExternalSessionCascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, session := seedSession(t, store)

	_, err := store.Append(ctx, session.ID, "place_order", nil, nil)
	require.NoError(t, err)
	cp, err := store.Commit(ctx, session.ID, "pre-delete", nil, ports.CheckpointOptions{})
	require.NoError(t, err)

	require.NoError(t, store.DeleteExternalSession(ctx, externalID))

	_, err = store.GetInternalSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, cp.ID)
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestListBranchesAndChildren(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, root := seedSession(t, store)

	a, err := store.CreateInternalSession(ctx, externalID, &root.ID, nil, nil)
	require.NoError(t, err)
	b, err := store.CreateInternalSession(ctx, externalID, &root.ID, nil, nil)
	require.NoError(t, err)

	branches, err := store.ListBranches(ctx, externalID)
	require.NoError(t, err)
	assert.Len(t, branches, 3)

	children, err := store.ChildSessions(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, []int64{children[0].ID, children[1].ID})
}

func TestBranchTree(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, root := seedSession(t, store)

	child, err := store.CreateInternalSession(ctx, externalID, &root.ID, nil, nil)
	require.NoError(t, err)

	tree, err := store.BranchTree(ctx, externalID)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, root.ID, tree.Roots[0].Session.ID)
	require.Len(t, tree.Roots[0].Children, 1)
	assert.Equal(t, child.ID, tree.Roots[0].Children[0].Session.ID)
}
