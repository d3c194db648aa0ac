package state

import (
	"context"
	"errors"

	gametypes "github.com/AmatanHead/points-game/pkg/game/types"
)

// ErrEmpty is returned by Get before the first state was set.
var ErrEmpty = errors.New("no game state yet")

// StateManager provides shared access to the game state.
// Implementations must be thread-safe.
type StateManager interface {
	// Get returns a copy of the current game state.
	Get(ctx context.Context) (*gametypes.GameState, error)
	// Set sets the current game state.
	Set(ctx context.Context, gameState *gametypes.GameState) error
}
