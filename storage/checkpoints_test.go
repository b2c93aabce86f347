package storage

import (
	"context"
	"testing"
	"time"

	"rewind/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitRecordsLedgerPosition(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, session := seedSession(t, store)

	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, session.ID, "update_file", nil, nil)
		require.NoError(t, err)
	}

	cp, err := store.Commit(ctx, session.ID, "before refactor", []byte(`{"k":"v"}`), ports.CheckpointOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, cp.ToolTrackPosition)
	assert.False(t, cp.IsAuto)
	assert.EqualValues(t, 3, cp.Metadata["tool_track_position"])

	// position is captured at commit time, not read time
	_, err = store.Append(ctx, session.ID, "delete_file", nil, nil)
	require.NoError(t, err)

	got, err := store.Get(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ToolTrackPosition)
	assert.Equal(t, []byte(`{"k":"v"}`), got.StateSnapshot)
}

func TestCommitEmptyLedger(t *testing.T) {
	store := setupTestStore(t)
	_, session := seedSession(t, store)

	cp, err := store.Commit(context.Background(), session.ID, "start", nil, ports.CheckpointOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, cp.ToolTrackPosition)
}

func TestCommitUnknownSession(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Commit(context.Background(), 42, "nope", nil, ports.CheckpointOptions{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCommitUpdatesCounters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, session := seedSession(t, store)

	_, err := store.Commit(ctx, session.ID, "one", nil, ports.CheckpointOptions{})
	require.NoError(t, err)
	_, err = store.Commit(ctx, session.ID, "two", nil, ports.CheckpointOptions{IsAuto: true})
	require.NoError(t, err)

	internal, err := store.GetInternalSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, internal.CheckpointCount)

	external, err := store.GetExternalSession(ctx, externalID)
	require.NoError(t, err)
	assert.Equal(t, 2, external.TotalCheckpoints)

	counts, err := store.Counts(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Auto)
	assert.Equal(t, 1, counts.Manual)
}

func TestSearchCheckpoints(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, session := seedSession(t, store)

	names := []string{"before deploy", "before refactor", "release v1"}
	for _, name := range names {
		_, err := store.Commit(ctx, session.ID, name, nil, ports.CheckpointOptions{})
		require.NoError(t, err)
	}

	all, err := store.Search(ctx, session.ID, "", nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// oldest first
	assert.Equal(t, "before deploy", all[0].Name)
	assert.Equal(t, "release v1", all[2].Name)

	matched, err := store.Search(ctx, session.ID, "before", nil, nil)
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	future := time.Now().UTC().Add(time.Hour)
	none, err := store.Search(ctx, session.ID, "", &future, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteCheckpoint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, session := seedSession(t, store)

	cp, err := store.Commit(ctx, session.ID, "disposable", nil, ports.CheckpointOptions{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, cp.ID))

	_, err = store.Get(ctx, cp.ID)
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	internal, err := store.GetInternalSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, internal.CheckpointCount)
}

func TestDeleteCheckpointRefusedWhileBranchPoint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, session := seedSession(t, store)

	cp, err := store.Commit(ctx, session.ID, "fork here", nil, ports.CheckpointOptions{})
	require.NoError(t, err)

	branch, err := store.CreateInternalSession(ctx, externalID, &session.ID, &cp.ID, nil)
	require.NoError(t, err)

	err = store.Delete(ctx, cp.ID)
	assert.ErrorIs(t, err, ErrCheckpointInUse)

	// once the branch is gone the checkpoint may be deleted
	require.NoError(t, store.DeleteInternalSession(ctx, branch.ID))
	require.NoError(t, store.Delete(ctx, cp.ID))
}

func TestCleanupAutoCheckpointsRetention(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, session := seedSession(t, store)

	manual, err := store.Commit(ctx, session.ID, "keep me", nil, ports.CheckpointOptions{})
	require.NoError(t, err)

	autos := make([]int64, 0, 5)
	for i := 0; i < 5; i++ {
		cp, err := store.Commit(ctx, session.ID, "After update_file", nil, ports.CheckpointOptions{IsAuto: true})
		require.NoError(t, err)
		autos = append(autos, cp.ID)
	}

	deleted, err := store.CleanupAutoCheckpoints(ctx, session.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	// manual checkpoints are never cleaned up
	_, err = store.Get(ctx, manual.ID)
	assert.NoError(t, err)

	// the two newest auto checkpoints survive
	for _, id := range autos[:3] {
		_, err = store.Get(ctx, id)
		assert.ErrorIs(t, err, ErrCheckpointNotFound)
	}
	for _, id := range autos[3:] {
		_, err = store.Get(ctx, id)
		assert.NoError(t, err)
	}
}

func TestCleanupSparesBranchPoints(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, session := seedSession(t, store)

	old, err := store.Commit(ctx, session.ID, "After create_file", nil, ports.CheckpointOptions{IsAuto: true})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := store.Commit(ctx, session.ID, "After update_file", nil, ports.CheckpointOptions{IsAuto: true})
		require.NoError(t, err)
	}

	_, err = store.CreateInternalSession(ctx, externalID, &session.ID, &old.ID, nil)
	require.NoError(t, err)

	deleted, err := store.CleanupAutoCheckpoints(ctx, session.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// oldest auto checkpoint is a live branch point and survives
	_, err = store.Get(ctx, old.ID)
	assert.NoError(t, err)
}

func TestCopyCheckpoints(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, session := seedSession(t, store)

	_, err := store.Append(ctx, session.ID, "place_order", nil, nil)
	require.NoError(t, err)
	early, err := store.Commit(ctx, session.ID, "early", []byte(`{"a":1}`), ports.CheckpointOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, early.ToolTrackPosition)

	branch, err := store.CreateInternalSession(ctx, externalID, &session.ID, &early.ID, nil)
	require.NoError(t, err)

	copied, err := store.CopyCheckpoints(ctx, session.ID, branch.ID, early.CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, copied)

	got, err := store.Search(ctx, branch.ID, "", nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "early", got[0].Name)
	// the branch ledger starts empty, so copied positions are reset
	assert.Equal(t, 0, got[0].ToolTrackPosition)
	assert.Equal(t, []byte(`{"a":1}`), got[0].StateSnapshot)
}
