package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsGaplessOrdinals(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, session := seedSession(t, store)

	for i := 0; i < 5; i++ {
		ordinal, err := store.Append(ctx, session.ID, "place_order", map[string]any{"n": i}, "ok")
		require.NoError(t, err)
		assert.Equal(t, i, ordinal)
	}

	length, err := store.Length(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, length)
}

func TestAppendUnknownSession(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Append(context.Background(), 9999, "place_order", nil, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAppendConcurrentOrdinalsUnique(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, session := seedSession(t, store)

	const writers = 4
	const perWriter = 5

	var wg sync.WaitGroup
	ordinals := make(chan int, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				ordinal, err := store.Append(ctx, session.ID, "send_email", nil, nil)
				assert.NoError(t, err)
				ordinals <- ordinal
			}
		}()
	}
	wg.Wait()
	close(ordinals)

	seen := make(map[int]bool)
	for ordinal := range ordinals {
		assert.False(t, seen[ordinal], "ordinal %d assigned twice", ordinal)
		seen[ordinal] = true
	}
	assert.Len(t, seen, writers*perWriter)

	length, err := store.Length(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, length)
}

func TestReadRange(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, session := seedSession(t, store)

	names := []string{"create_file", "update_file", "delete_file", "send_email"}
	for _, name := range names {
		_, err := store.Append(ctx, session.ID, name, nil, nil)
		require.NoError(t, err)
	}

	records, err := store.ReadRange(ctx, session.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "update_file", records[0].ToolName)
	assert.Equal(t, 1, records[0].Ordinal)
	assert.Equal(t, "delete_file", records[1].ToolName)

	// inverted bounds yield nothing
	records, err = store.ReadRange(ctx, session.ID, 3, 1)
	require.NoError(t, err)
	assert.Empty(t, records)

	// bounds past the end are clipped by what exists
	records, err = store.ReadRange(ctx, session.ID, 3, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "send_email", records[0].ToolName)
}

func TestLengthEmptySession(t *testing.T) {
	store := setupTestStore(t)
	_, session := seedSession(t, store)

	length, err := store.Length(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, length)
}

func TestMarkReversedIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, session := seedSession(t, store)

	_, err := store.Append(ctx, session.ID, "place_order", nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.MarkReversed(ctx, session.ID, 0))
	require.NoError(t, store.MarkReversed(ctx, session.ID, 0))

	records, err := store.ReadRange(ctx, session.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Reversed)
}

func TestMarkReversedUnknownOrdinal(t *testing.T) {
	store := setupTestStore(t)
	_, session := seedSession(t, store)

	err := store.MarkReversed(context.Background(), session.ID, 7)
	assert.Error(t, err)
}

func TestLedgerIsolatedPerSession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	externalID, root := seedSession(t, store)

	_, err := store.Append(ctx, root.ID, "place_order", nil, nil)
	require.NoError(t, err)

	branch, err := store.CreateInternalSession(ctx, externalID, &root.ID, nil, nil)
	require.NoError(t, err)

	length, err := store.Length(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, length)

	ordinal, err := store.Append(ctx, branch.ID, "send_email", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ordinal)

	rootLength, err := store.Length(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rootLength)
}
