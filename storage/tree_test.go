package storage

import (
	"context"
	"testing"

	"rewind/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchStatistics(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, root := seedSession(t, store)

	_, err := store.Append(ctx, root.ID, "create_file", nil, nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, root.ID, "update_file", nil, nil)
	require.NoError(t, err)
	_, err = store.Commit(ctx, root.ID, "manual", nil, ports.CheckpointOptions{})
	require.NoError(t, err)
	_, err = store.Commit(ctx, root.ID, "After update_file", nil, ports.CheckpointOptions{IsAuto: true})
	require.NoError(t, err)

	branch, err := store.CreateInternalSession(ctx, externalID, &root.ID, nil, nil)
	require.NoError(t, err)

	stats, err := store.BranchStatistics(ctx, externalID)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, 2, stats[root.ID].LedgerLength)
	assert.Equal(t, 1, stats[root.ID].Checkpoints.Auto)
	assert.Equal(t, 1, stats[root.ID].Checkpoints.Manual)
	assert.False(t, stats[root.ID].IsCurrent)

	assert.Equal(t, 0, stats[branch.ID].LedgerLength)
	assert.True(t, stats[branch.ID].IsCurrent)
	assert.True(t, stats[branch.ID].IsBranch)
}
