package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AmatanHead/points-game/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	pending, err := readMigrations(migrations)
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, m := range pending {
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute migration %s: %v", m.path, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveGame(ctx context.Context, game *models.Game) error {
	now := time.Now().UnixMilli()
	q := `
	INSERT INTO games (contract, player1, player2, me, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (contract) DO UPDATE SET player1 = excluded.player1, player2 = excluded.player2, me = excluded.me, updated_at = excluded.updated_at;
	`
	_, err := r.db.ExecContext(ctx, q, game.Contract, game.Player1, game.Player2, game.Me, now, now)
	if err != nil {
		return fmt.Errorf("failed to save game: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) ListGames(ctx context.Context) ([]*models.Game, error) {
	q := `
	SELECT contract, player1, player2, me, created_at, updated_at FROM games ORDER BY updated_at DESC, contract;
	`
	rows, err := r.db.QueryContext(ctx, q)
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

func (r *SQLiteRepository) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	now := time.Now().UnixMilli()
	q := `
	INSERT INTO transactions (tx_id, contract, op, sender, args, status, block_height, reason, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (tx_id) DO UPDATE SET status = excluded.status, block_height = excluded.block_height, reason = excluded.reason, updated_at = excluded.updated_at;
	`
	_, err := r.db.ExecContext(ctx, q, tx.TxID, tx.Contract, tx.Op, tx.Sender, tx.Args, string(tx.Status), int64(tx.BlockHeight), tx.Reason, now, now)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, contract string) ([]*models.Transaction, error) {
	q := `
	SELECT tx_id, contract, op, sender, args, status, block_height, reason, created_at, updated_at
	FROM transactions WHERE contract = ? ORDER BY created_at, rowid;
	`
	rows, err := r.db.QueryContext(ctx, q, contract)
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

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	q := `
	INSERT OR REPLACE INTO snapshots (contract, height, data, created_at)
	VALUES (?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, snapshot.Contract, int64(snapshot.Height), snapshot.Data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadLatestSnapshot(ctx context.Context, contract string) (*models.Snapshot, error) {
	q := `
	SELECT contract, height, data, created_at FROM snapshots WHERE contract = ? ORDER BY height DESC LIMIT 1;
	`
	snapshot := &models.Snapshot{}
	var height int64
	if err := r.db.QueryRowContext(ctx, q, contract).Scan(&snapshot.Contract, &height, &snapshot.Data, &snapshot.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan snapshot: %v", err)
	}
	snapshot.Height = uint64(height)

	return snapshot, nil
}
