package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/AmatanHead/points-game/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database and applies migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string, migrations string) (Repository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	pending, err := readMigrations(migrations)
	if err != nil {
		pool.Close()
		return nil, err
	}
	for _, m := range pending {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to execute migration %s: %v", m.path, err)
		}
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) SaveGame(ctx context.Context, game *models.Game) error {
	now := time.Now().UnixMilli()
	q := `
	INSERT INTO games (contract, player1, player2, me, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT (contract) DO UPDATE SET player1 = $2, player2 = $3, me = $4, updated_at = $5;
	`
	_, err := r.pool.Exec(ctx, q, game.Contract, game.Player1, game.Player2, game.Me, now)
	if err != nil {
		return fmt.Errorf("failed to save game: %v", err)
	}

	return nil
}

func (r *PostgresRepository) ListGames(ctx context.Context) ([]*models.Game, error) {
	q := `
	SELECT contract, player1, player2, me, created_at, updated_at FROM games ORDER BY updated_at DESC, contract;
	`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %v", err)
	}
	defer rows.Close()

	games := make([]*models.Game, 0)
	for rows.Next() {
		game := &models.Game{}
		if err := rows.Scan(&game.Contract, &game.Player1, &game.Player2, &game.Me, &game.CreatedAt, &game.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %v", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %v", err)
	}

	return games, nil
}

func (r *PostgresRepository) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	now := time.Now().UnixMilli()
	q := `
	INSERT INTO transactions (tx_id, contract, op, sender, args, status, block_height, reason, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	ON CONFLICT (tx_id) DO UPDATE SET status = $6, block_height = $7, reason = $8, updated_at = $9;
	`
	_, err := r.pool.Exec(ctx, q, tx.TxID, tx.Contract, tx.Op, tx.Sender, tx.Args, string(tx.Status), int64(tx.BlockHeight), tx.Reason, now)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %v", err)
	}

	return nil
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, contract string) ([]*models.Transaction, error) {
	q := `
	SELECT tx_id, contract, op, sender, args, status, block_height, reason, created_at, updated_at
	FROM transactions WHERE contract = $1 ORDER BY created_at, tx_id;
	`
	rows, err := r.pool.Query(ctx, q, contract)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %v", err)
	}
	defer rows.Close()

	txs := make([]*models.Transaction, 0)
	for rows.Next() {
		tx := &models.Transaction{}
		var status string
		var height int64
		if err := rows.Scan(&tx.TxID, &tx.Contract, &tx.Op, &tx.Sender, &tx.Args, &status, &height, &tx.Reason, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %v", err)
		}
		tx.Status = models.TransactionStatus(status)
		tx.BlockHeight = uint64(height)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %v", err)
	}

	return txs, nil
}

func (r *PostgresRepository) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	q := `
	INSERT INTO snapshots (contract, height, data, created_at) VALUES ($1, $2, $3, $4)
	ON CONFLICT (contract, height) DO UPDATE SET data = $3, created_at = $4;
	`
	_, err := r.pool.Exec(ctx, q, snapshot.Contract, int64(snapshot.Height), snapshot.Data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %v", err)
	}

	return nil
}

func (r *PostgresRepository) LoadLatestSnapshot(ctx context.Context, contract string) (*models.Snapshot, error) {
	q := `
	SELECT contract, height, data, created_at FROM snapshots WHERE contract = $1 ORDER BY height DESC LIMIT 1;
	`
	snapshot := &models.Snapshot{}
	var height int64
	if err := r.pool.QueryRow(ctx, q, contract).Scan(&snapshot.Contract, &height, &snapshot.Data, &snapshot.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan snapshot: %v", err)
	}
	snapshot.Height = uint64(height)

	return snapshot, nil
}
