package workers

import (
	"context"
	"errors"
	"time"

	"github.com/AmatanHead/points-game/pkg/game/constants"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/AmatanHead/points-game/pkg/messages"
	"github.com/AmatanHead/points-game/pkg/repositories"
	"github.com/AmatanHead/points-game/pkg/repositories/models"
	"github.com/AmatanHead/points-game/pkg/state"
)

// SaveSnapshotWorker periodically persists the current snapshot so that a
// restarted client has something to show before its first fetch.
type SaveSnapshotWorker struct {
	repository   repositories.Repository
	stateManager state.StateManager
	interval     time.Duration

	lastContract types.Address
	lastHeight   uint64
}

type NewSaveSnapshotWorkerOptions struct {
	Repository   repositories.Repository
	StateManager state.StateManager
	Interval     time.Duration
}

func NewSaveSnapshotWorker(opts NewSaveSnapshotWorkerOptions) *SaveSnapshotWorker {
	if opts.Interval <= 0 {
		opts.Interval = constants.SnapshotSaveInterval
	}
	return &SaveSnapshotWorker{
		repository:   opts.Repository,
		stateManager: opts.StateManager,
		interval:     opts.Interval,
	}
}

func (w *SaveSnapshotWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// one last save so nothing applied since the last tick is lost
			w.Save(context.Background())
			return
		case <-ticker.C:
			w.Save(ctx)
		}
	}
}

// Save stores the current snapshot unless it was already stored.
func (w *SaveSnapshotWorker) Save(ctx context.Context) {
	gameState, err := w.stateManager.Get(ctx)
	if err != nil {
		if !errors.Is(err, state.ErrEmpty) {
			log.Error("Failed to get current game state: %v", err)
		}
		return
	}
	s := gameState.Snapshot
	if s == nil {
		return
	}
	if s.Contract.Equal(w.lastContract) && s.Height <= w.lastHeight {
		return
	}

	data, err := messages.SerializeSnapshot(s)
	if err != nil {
		log.Error("Failed to serialize snapshot: %v", err)
		return
	}
	err = w.repository.SaveSnapshot(ctx, &models.Snapshot{
		Contract: s.Contract.String(),
		Height:   s.Height,
		Data:     data,
	})
	if err != nil {
		log.Error("Failed to save snapshot: %v", err)
		return
	}

	log.Debug("Saved snapshot of %s at height %d", s.Contract, s.Height)
	w.lastContract = s.Contract
	w.lastHeight = s.Height
}
