package state

import (
	"context"
	"fmt"
	"sync"

	gametypes "github.com/AmatanHead/points-game/pkg/game/types"
)

type InMemoryStateManager struct {
	lock      sync.RWMutex
	gameState *gametypes.GameState
}

func NewInMemoryStateManager() *InMemoryStateManager {
	return &InMemoryStateManager{}
}

// Get returns a shallow copy. Snapshots and views are never modified once
// set, so sharing them is safe.
func (m *InMemoryStateManager) Get(ctx context.Context) (*gametypes.GameState, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if m.gameState == nil {
		return nil, ErrEmpty
	}
	return m.gameState.Copy(), nil
}

func (m *InMemoryStateManager) Set(ctx context.Context, gameState *gametypes.GameState) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if gameState == nil {
		return fmt.Errorf("game state is nil")
	}

	m.gameState = gameState
	return nil
}
