package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/AmatanHead/points-game/pkg/game/constants"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/google/uuid"
)

// Client talks to a ledger node. It implements ledger.Client and
// ledger.Node.
type Client struct {
	url    string
	client *http.Client
	gas    uint64
}

type NewClientOptions struct {
	// URL of the node, e.g. http://localhost:8545
	URL        string
	HTTPClient *http.Client
	// Gas is attached to every submission, 0 means constants.SubmitGas
	Gas uint64
}

func NewClient(opts NewClientOptions) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if opts.Gas == 0 {
		opts.Gas = constants.SubmitGas
	}
	return &Client{
		url:    strings.TrimRight(opts.URL, "/"),
		client: opts.HTTPClient,
		gas:    opts.Gas,
	}
}

// call performs one JSON-RPC request and decodes the result into result.
func (c *Client) call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	rawParams, err := marshalParams(params...)
	if err != nil {
		return fmt.Errorf("failed to marshal %s params: %w", method, err)
	}

	reqBytes, err := json.Marshal(&Request{
		JSONRPC: jsonrpcVersion,
		ID:      uuid.NewString(),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send RPC request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read RPC response: %w", err)
	}

	var rpcResp Response
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse RPC response: %w (status: %s)", err, resp.Status)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	log.Trace("RPC %s -> %s", method, rpcResp.Result)
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func marshalParams(params ...interface{}) ([]json.RawMessage, error) {
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return raw, nil
}

func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := c.call(ctx, &height, MethodBlockNumber); err != nil {
		return 0, err
	}
	return height, nil
}

func (c *Client) Call(ctx context.Context, contract types.Address, field string, height uint64, args ...interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.call(ctx, &result, MethodCall, &CallArgs{To: contract, Field: field, Args: args}, height)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) Send(ctx context.Context, contract types.Address, op ledger.Operation, from types.Address, args ...interface{}) (ledger.TxID, error) {
	var id ledger.TxID
	err := c.call(ctx, &id, MethodSendTransaction, &TransactionArgs{
		From: from,
		To:   contract,
		Op:   op,
		Args: args,
		Gas:  c.gas,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) Deploy(ctx context.Context, opponent types.Address, from types.Address) (ledger.TxID, error) {
	var id ledger.TxID
	err := c.call(ctx, &id, MethodDeploy, &DeployArgs{From: from, Opponent: opponent, Gas: c.gas})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) Receipt(ctx context.Context, id ledger.TxID) (*ledger.Receipt, error) {
	var receipt ledger.Receipt
	if err := c.call(ctx, &receipt, MethodGetReceipt, id); err != nil {
		if rpcErr, ok := err.(*Error); ok && isUnknownTransaction(rpcErr) {
			return nil, &ledger.NotFoundError{TxID: id}
		}
		return nil, err
	}
	return &receipt, nil
}

func isUnknownTransaction(e *Error) bool {
	return e.Code == CodeUnknownTransaction || strings.Contains(e.Message, MessageUnknownTransaction)
}

func (c *Client) Listening(ctx context.Context) (bool, error) {
	var listening bool
	if err := c.call(ctx, &listening, MethodListening); err != nil {
		return false, err
	}
	return listening, nil
}

func (c *Client) Coinbase(ctx context.Context) (types.Address, error) {
	var coinbase types.Address
	if err := c.call(ctx, &coinbase, MethodCoinbase); err != nil {
		return "", err
	}
	return coinbase, nil
}

func (c *Client) Balance(ctx context.Context, account types.Address) (*big.Int, error) {
	var balance string
	if err := c.call(ctx, &balance, MethodGetBalance, account); err != nil {
		return nil, err
	}
	amount, ok := new(big.Int).SetString(balance, 10)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q", balance)
	}
	return amount, nil
}
