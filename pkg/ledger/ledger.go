// Package ledger describes the remote ledger as seen by the game client: a
// block-structured store reachable through independent asynchronous reads,
// submitted transactions, receipts and change notifications.
package ledger

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/AmatanHead/points-game/pkg/game/types"
)

// Field names and events exposed by the game contract.
const (
	FieldPlayer1       = "player1"
	FieldPlayer2       = "player2"
	FieldCurrentPlayer = "currentPlayer"
	FieldWinner        = "winner"
	FieldGameOver      = "gameOver"
	FieldCell          = "field"
	FieldDrawOffers    = "drawOffers"
	FieldFinishOffers  = "finishOffers"
	FieldStakes        = "stakes"

	EventUpdate = "Update"
)

// Operation is a state-mutating contract call.
type Operation string

const (
	OpMove            Operation = "move"
	OpOfferDraw       Operation = "offerDraw"
	OpRevokeDrawOffer Operation = "revokeDrawOffer"
	OpResign          Operation = "resign"
	// OpDeploy creates a new game contract
	OpDeploy Operation = "deploy"
)

// TxID is the opaque identifier returned for a submitted transaction.
type TxID string

// Receipt confirms that a transaction was included in a block.
type Receipt struct {
	TxID        TxID   `json:"txId"`
	BlockHeight uint64 `json:"blockHeight"`
	// ContractAddress is set for deployments
	ContractAddress types.Address `json:"contractAddress,omitempty"`
	// Reverted is set when the transaction was included but its effects
	// were rolled back by the contract
	Reverted bool   `json:"reverted"`
	Reason   string `json:"reason,omitempty"`
}

// Event is a change notification for a contract.
type Event struct {
	Contract    types.Address `json:"contract"`
	Name        string        `json:"name"`
	BlockHeight uint64        `json:"blockHeight"`
}

// Reader performs single reads pinned to a block height.
type Reader interface {
	// BlockHeight returns the height of the latest block.
	BlockHeight(ctx context.Context) (uint64, error)
	// Call reads field (with optional index args) from contract at height.
	Call(ctx context.Context, contract types.Address, field string, height uint64, args ...interface{}) (json.RawMessage, error)
}

// Writer submits state-mutating calls.
type Writer interface {
	Send(ctx context.Context, contract types.Address, op Operation, from types.Address, args ...interface{}) (TxID, error)
	// Deploy creates a new game contract between from and opponent.
	Deploy(ctx context.Context, opponent types.Address, from types.Address) (TxID, error)
}

// ReceiptSource looks up transaction receipts. A transaction that is not
// yet included returns an error for which IsNotFound is true.
type ReceiptSource interface {
	Receipt(ctx context.Context, id TxID) (*Receipt, error)
}

// Subscription is a live notification stream. Err delivers at most one
// error, after which the subscription is dead.
type Subscription interface {
	Events() <-chan Event
	Err() <-chan error
	Cancel()
}

// Notifier creates change notification subscriptions.
type Notifier interface {
	Subscribe(ctx context.Context, contract types.Address, event string) (Subscription, error)
}

// Client is everything the game engine consumes from the ledger.
type Client interface {
	Reader
	Writer
	ReceiptSource
	Notifier
}

// Node exposes the node-level calls used while connecting.
type Node interface {
	Listening(ctx context.Context) (bool, error)
	Coinbase(ctx context.Context) (types.Address, error)
	Balance(ctx context.Context, account types.Address) (*big.Int, error)
}
