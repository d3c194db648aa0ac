package workers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/messages"
	"github.com/AmatanHead/points-game/pkg/repositories"
	"github.com/AmatanHead/points-game/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveSnapshotWorker_SavesOnlyNewHeights(t *testing.T) {
	ctx := context.Background()
	repository, err := repositories.NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "points.db"), "../../migrations/sqlite")
	require.NoError(t, err)
	defer repository.Close(ctx)

	stateManager := state.NewInMemoryStateManager()
	w := NewSaveSnapshotWorker(NewSaveSnapshotWorkerOptions{
		Repository:   repository,
		StateManager: stateManager,
	})

	// nothing applied yet
	w.Save(ctx)
	_, err = repository.LoadLatestSnapshot(ctx, "0xc0")
	assert.True(t, repositories.IsNotFound(err))

	s := types.NewGameSnapshot("0xc0", 5, 2, 2)
	s.Player1 = alice
	s.Player2 = bob
	require.NoError(t, stateManager.Set(ctx, &types.GameState{Contract: "0xc0", Snapshot: s}))
	w.Save(ctx)

	stored, err := repository.LoadLatestSnapshot(ctx, "0xc0")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), stored.Height)
	decoded, err := messages.DeserializeSnapshot(stored.Data)
	require.NoError(t, err)
	assert.Equal(t, alice, decoded.Player1)

	// an older snapshot is not written over the newer one
	require.NoError(t, stateManager.Set(ctx, &types.GameState{Contract: "0xc0", Snapshot: types.NewGameSnapshot("0xc0", 4, 2, 2)}))
	w.Save(ctx)
	stored, err = repository.LoadLatestSnapshot(ctx, "0xc0")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), stored.Height)
}
