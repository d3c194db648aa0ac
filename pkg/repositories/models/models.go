package models

// Game is a game contract the local identity created or joined.
type Game struct {
	Contract  string `json:"contract"`
	Player1   string `json:"player1"`
	Player2   string `json:"player2"`
	Me        string `json:"me"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusReverted  TransactionStatus = "reverted"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is a submitted state-mutating call and what became of it.
type Transaction struct {
	TxID        string            `json:"tx_id"`
	Contract    string            `json:"contract"`
	Op          string            `json:"op"`
	Sender      string            `json:"sender"`
	Args        string            `json:"args"`
	Status      TransactionStatus `json:"status"`
	BlockHeight uint64            `json:"block_height"`
	Reason      string            `json:"reason,omitempty"`
	CreatedAt   int64             `json:"created_at"`
	UpdatedAt   int64             `json:"updated_at"`
}

// Snapshot is an encoded game snapshot.
type Snapshot struct {
	Contract  string `json:"contract"`
	Height    uint64 `json:"height"`
	Data      []byte `json:"-"`
	CreatedAt int64  `json:"created_at"`
}
