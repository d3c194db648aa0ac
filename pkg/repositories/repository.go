package repositories

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/AmatanHead/points-game/pkg/repositories/models"
)

type Repository interface {
	Close(ctx context.Context) error
	// SaveGame inserts a game or refreshes its updated_at.
	SaveGame(ctx context.Context, game *models.Game) error
	// ListGames returns the known games, most recently updated first.
	ListGames(ctx context.Context) ([]*models.Game, error)
	// SaveTransaction inserts a transaction or updates its outcome.
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	// ListTransactions returns the transactions sent to contract, oldest first.
	ListTransactions(ctx context.Context, contract string) ([]*models.Transaction, error)
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error
	// LoadLatestSnapshot returns the highest stored snapshot of contract.
	LoadLatestSnapshot(ctx context.Context, contract string) (*models.Snapshot, error)
}

// New opens the repository named by connStr: sqlite://<file> or
// postgresql://... Migrations are read from migrationsDir/<driver>.
func New(ctx context.Context, connStr string, migrationsDir string) (Repository, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	switch u.Scheme {
	case "sqlite":
		path := u.Host + u.Path
		if u.Opaque != "" {
			path = u.Opaque
		}
		return NewSQLiteRepository(ctx, path, filepath.Join(migrationsDir, "sqlite"))
	case "postgresql", "postgres":
		return NewPostgresRepository(ctx, u.String(), filepath.Join(migrationsDir, "postgres"))
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}
