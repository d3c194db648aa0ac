package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/AmatanHead/points-game/pkg/ledger/memory"
	"github.com/AmatanHead/points-game/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice types.Address = "0x00000000000000000000000000000000000000a1"
	bob   types.Address = "0x00000000000000000000000000000000000000b0"
)

func newTestNode(t *testing.T) (*memory.Ledger, *Client, *httptest.Server) {
	t.Helper()
	l := memory.NewLedger(memory.NewLedgerOptions{
		Width:    5,
		Rows:     4,
		Coinbase: alice,
		Balances: map[types.Address]*big.Int{alice: big.NewInt(1000)},
	})
	srv := httptest.NewServer(NewServer(NewServerOptions{Backend: l}).Handler())
	t.Cleanup(srv.Close)
	return l, NewClient(NewClientOptions{URL: srv.URL + "/"}), srv
}

func deployGame(t *testing.T, l *memory.Ledger, c *Client) types.Address {
	t.Helper()
	ctx := context.Background()

	id, err := c.Deploy(ctx, bob, alice)
	require.NoError(t, err)
	l.Mine()

	receipt, err := c.Receipt(ctx, id)
	require.NoError(t, err)
	require.False(t, receipt.Reverted)
	return receipt.ContractAddress
}

func TestClient_SendAndCall(t *testing.T) {
	ctx := context.Background()
	l, c, _ := newTestNode(t)
	contract := deployGame(t, l, c)

	id, err := c.Send(ctx, contract, ledger.OpMove, alice, 2, 3)
	require.NoError(t, err)

	_, err = c.Receipt(ctx, id)
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))

	block := l.Mine()
	receipt, err := c.Receipt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, receipt.TxID)
	assert.Equal(t, block.Height, receipt.BlockHeight)
	assert.False(t, receipt.Reverted)

	height, err := c.BlockHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, block.Height, height)

	raw, err := c.Call(ctx, contract, ledger.FieldCell, height, 2, 3)
	require.NoError(t, err)
	var cell types.Cell
	require.NoError(t, json.Unmarshal(raw, &cell))
	assert.Equal(t, alice, cell.Owner)

	raw, err = c.Call(ctx, contract, ledger.FieldCurrentPlayer, height)
	require.NoError(t, err)
	var current types.Address
	require.NoError(t, json.Unmarshal(raw, &current))
	assert.Equal(t, bob, current)
}

func TestClient_RevertedSend(t *testing.T) {
	ctx := context.Background()
	l, c, _ := newTestNode(t)
	contract := deployGame(t, l, c)

	// bob moves out of turn
	id, err := c.Send(ctx, contract, ledger.OpMove, bob, 0, 0)
	require.NoError(t, err)
	l.Mine()

	receipt, err := c.Receipt(ctx, id)
	require.NoError(t, err)
	assert.True(t, receipt.Reverted)
	assert.NotEmpty(t, receipt.Reason)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	l, c, _ := newTestNode(t)
	contract := deployGame(t, l, c)

	_, err := c.Call(ctx, contract, "nope", 0)
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeServerError, rpcErr.Code)

	_, err = c.Call(ctx, memory.NewAddress(), ledger.FieldPlayer1, 0)
	assert.Error(t, err)

	_, err = c.Send(ctx, memory.NewAddress(), ledger.OpMove, alice, 0, 0)
	assert.Error(t, err)

	_, err = c.Deploy(ctx, types.ZeroAddress, alice)
	assert.Error(t, err)

	_, err = c.Receipt(ctx, "0xmissing")
	assert.True(t, ledger.IsNotFound(err))
}

func TestClient_FetchSnapshot(t *testing.T) {
	ctx := context.Background()
	l, c, _ := newTestNode(t)
	contract := deployGame(t, l, c)

	_, err := l.Update(contract, func(game *memory.Contract) {
		game.Field[4][3].Owner = bob
		game.Field[4][3].TerritoryOwner = alice
		game.Stakes[alice] = big.NewInt(42)
	})
	require.NoError(t, err)

	s, err := snapshot.NewFetcher(snapshot.NewFetcherOptions{
		Reader:   c,
		Contract: contract,
		Width:    5,
		Rows:     4,
	}).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, s.Player1)
	assert.Equal(t, bob, s.Player2)
	assert.Equal(t, bob, s.Cell(4, 3).Owner)
	assert.Equal(t, alice, s.Cell(4, 3).TerritoryOwner)
	assert.Equal(t, "42", s.Stakes[alice].String())
	assert.Equal(t, "0", s.Stakes[bob].String())
}

func TestClient_NodeMethods(t *testing.T) {
	ctx := context.Background()
	_, c, _ := newTestNode(t)

	listening, err := c.Listening(ctx)
	require.NoError(t, err)
	assert.True(t, listening)

	coinbase, err := c.Coinbase(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, coinbase)

	balance, err := c.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "1000", balance.String())

	balance, err = c.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "0", balance.String())
}

func TestServer_ProtocolErrors(t *testing.T) {
	_, _, srv := newTestNode(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "parse error",
			body:     `{"jsonrpc":`,
			wantCode: CodeParseError,
		},
		{
			name:     "unknown method",
			body:     `{"jsonrpc":"2.0","id":"1","method":"ledger_mine","params":[]}`,
			wantCode: CodeMethodNotFound,
		},
		{
			name:     "missing params",
			body:     `{"jsonrpc":"2.0","id":"1","method":"ledger_getReceipt","params":[]}`,
			wantCode: CodeInvalidParams,
		},
		{
			name:     "malformed params",
			body:     `{"jsonrpc":"2.0","id":"1","method":"ledger_call","params":[{"to":"0x1"},"high"]}`,
			wantCode: CodeInvalidParams,
		},
		{
			name:     "unknown transaction",
			body:     `{"jsonrpc":"2.0","id":"1","method":"ledger_getReceipt","params":["0xabc"]}`,
			wantCode: CodeUnknownTransaction,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL, "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			var rpcResp Response
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
			require.NotNil(t, rpcResp.Error)
			assert.Equal(t, tt.wantCode, rpcResp.Error.Code)
			assert.Equal(t, jsonrpcVersion, rpcResp.JSONRPC)
		})
	}
}

func TestClient_Subscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l, c, _ := newTestNode(t)
	contract := deployGame(t, l, c)

	sub, err := c.Subscribe(ctx, contract, ledger.EventUpdate)
	require.NoError(t, err)
	defer sub.Cancel()
	require.Eventually(t, func() bool { return l.Subscribers(contract) == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = c.Send(ctx, contract, ledger.OpMove, alice, 1, 1)
	require.NoError(t, err)
	block := l.Mine()

	select {
	case e := <-sub.Events():
		assert.Equal(t, ledger.EventUpdate, e.Name)
		assert.Equal(t, contract, e.Contract)
		assert.Equal(t, block.Height, e.BlockHeight)
	case err := <-sub.Err():
		t.Fatalf("subscription failed: %v", err)
	case <-ctx.Done():
		t.Fatal("no event received")
	}

	// a node side failure reaches the client as an error
	l.FailSubscriptions(errors.New("node restarting"))
	select {
	case err := <-sub.Err():
		assert.Error(t, err)
	case <-ctx.Done():
		t.Fatal("no error received")
	}
}

func TestClient_SubscribeCancel(t *testing.T) {
	ctx := context.Background()
	l, c, _ := newTestNode(t)
	contract := deployGame(t, l, c)

	sub, err := c.Subscribe(ctx, contract, ledger.EventUpdate)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.Subscribers(contract) == 1 }, 2*time.Second, 5*time.Millisecond)

	sub.Cancel()
	sub.Cancel()
	assert.Eventually(t, func() bool { return l.Subscribers(contract) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_SubscribeUnreachable(t *testing.T) {
	c := NewClient(NewClientOptions{URL: "http://127.0.0.1:1"})
	_, err := c.Subscribe(context.Background(), alice, ledger.EventUpdate)
	assert.Error(t, err)
}
