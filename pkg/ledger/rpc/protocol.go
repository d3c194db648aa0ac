// Package rpc carries the ledger ports over JSON-RPC 2.0: plain HTTP POST for
// reads, submissions and receipts, and a websocket for change notifications.
package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
)

const (
	MethodBlockNumber     = "ledger_blockNumber"
	MethodCall            = "ledger_call"
	MethodSendTransaction = "ledger_sendTransaction"
	MethodDeploy          = "ledger_deploy"
	MethodGetReceipt      = "ledger_getReceipt"
	MethodListening       = "ledger_listening"
	MethodCoinbase        = "ledger_coinbase"
	MethodGetBalance      = "ledger_getBalance"
	MethodSubscribe       = "ledger_subscribe"
)

// Error codes. CodeUnknownTransaction is what a node answers for a receipt
// that does not exist yet.
const (
	CodeParseError         = -32700
	CodeMethodNotFound     = -32601
	CodeInvalidParams      = -32602
	CodeServerError        = -32000
	CodeUnknownTransaction = -32001

	MessageUnknownTransaction = "unknown transaction"
)

const jsonrpcVersion = "2.0"

type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// CallArgs are the parameters of ledger_call, followed by the block height.
type CallArgs struct {
	To    types.Address `json:"to"`
	Field string        `json:"field"`
	Args  []interface{} `json:"args,omitempty"`
}

// TransactionArgs are the parameters of ledger_sendTransaction.
type TransactionArgs struct {
	From types.Address    `json:"from"`
	To   types.Address    `json:"to"`
	Op   ledger.Operation `json:"op"`
	Args []interface{}    `json:"args,omitempty"`
	Gas  uint64           `json:"gas"`
}

// DeployArgs are the parameters of ledger_deploy.
type DeployArgs struct {
	From     types.Address `json:"from"`
	Opponent types.Address `json:"opponent"`
	Gas      uint64        `json:"gas"`
}

// SubscribeArgs are the parameters of ledger_subscribe.
type SubscribeArgs struct {
	Contract types.Address `json:"contract"`
	Event    string        `json:"event"`
}
