package memory

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice types.Address = "0x00000000000000000000000000000000000000a1"
	bob   types.Address = "0x00000000000000000000000000000000000000b0"
)

func deploy(t *testing.T, l *Ledger) types.Address {
	t.Helper()
	ctx := context.Background()

	id, err := l.Deploy(ctx, bob, alice)
	require.NoError(t, err)
	l.Mine()

	receipt, err := l.Receipt(ctx, id)
	require.NoError(t, err)
	require.False(t, receipt.Reverted)
	require.False(t, receipt.ContractAddress.IsZero())
	return receipt.ContractAddress
}

func readAddress(t *testing.T, l *Ledger, contract types.Address, field string, height uint64) types.Address {
	t.Helper()
	raw, err := l.Call(context.Background(), contract, field, height)
	require.NoError(t, err)
	var a types.Address
	require.NoError(t, json.Unmarshal(raw, &a))
	return a
}

func TestLedger_DeployAndMove(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(NewLedgerOptions{Width: 5, Rows: 4})
	contract := deploy(t, l)

	assert.Equal(t, alice, readAddress(t, l, contract, ledger.FieldPlayer1, l.Head().Height))
	assert.Equal(t, bob, readAddress(t, l, contract, ledger.FieldPlayer2, l.Head().Height))
	assert.Equal(t, alice, readAddress(t, l, contract, ledger.FieldCurrentPlayer, l.Head().Height))

	id, err := l.Send(ctx, contract, ledger.OpMove, alice, 2, 3)
	require.NoError(t, err)

	_, err = l.Receipt(ctx, id)
	assert.True(t, ledger.IsNotFound(err))

	before := l.Head().Height
	block := l.Mine()
	assert.Equal(t, before+1, block.Height)

	receipt, err := l.Receipt(ctx, id)
	require.NoError(t, err)
	assert.False(t, receipt.Reverted)
	assert.Equal(t, block.Height, receipt.BlockHeight)

	raw, err := l.Call(ctx, contract, ledger.FieldCell, block.Height, 2, 3)
	require.NoError(t, err)
	var cell types.Cell
	require.NoError(t, json.Unmarshal(raw, &cell))
	assert.Equal(t, alice, cell.Owner)
	assert.Equal(t, int64(1), cell.MoveIndex)
	assert.Equal(t, bob, readAddress(t, l, contract, ledger.FieldCurrentPlayer, block.Height))

	// the previous height still sees the empty cell
	raw, err = l.Call(ctx, contract, ledger.FieldCell, before, 2, 3)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &cell))
	assert.True(t, cell.Owner.IsZero())

	require.NoError(t, l.Verify())
}

func TestLedger_RevertedCalls(t *testing.T) {
	tests := []struct {
		name string
		from types.Address
		op   ledger.Operation
		args []interface{}
	}{
		{name: "not your turn", from: bob, op: ledger.OpMove, args: []interface{}{0, 0}},
		{name: "out of range", from: alice, op: ledger.OpMove, args: []interface{}{9, 9}},
		{name: "not a player", from: NewAddress(), op: ledger.OpResign},
		{name: "unknown operation", from: alice, op: ledger.Operation("castle")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l := NewLedger(NewLedgerOptions{Width: 5, Rows: 4})
			contract := deploy(t, l)

			id, err := l.Send(ctx, contract, tt.op, tt.from, tt.args...)
			require.NoError(t, err)
			l.Mine()

			receipt, err := l.Receipt(ctx, id)
			require.NoError(t, err)
			assert.True(t, receipt.Reverted)
			assert.NotEmpty(t, receipt.Reason)
			assert.Equal(t, alice, readAddress(t, l, contract, ledger.FieldCurrentPlayer, l.Head().Height))
		})
	}
}

func TestLedger_DrawAndResign(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(NewLedgerOptions{Width: 5, Rows: 4})
	contract := deploy(t, l)

	_, err := l.Send(ctx, contract, ledger.OpOfferDraw, alice)
	require.NoError(t, err)
	l.Mine()

	raw, err := l.Call(ctx, contract, ledger.FieldDrawOffers, l.Head().Height, alice)
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(raw))

	_, err = l.Send(ctx, contract, ledger.OpOfferDraw, bob)
	require.NoError(t, err)
	l.Mine()

	raw, err = l.Call(ctx, contract, ledger.FieldGameOver, l.Head().Height)
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(raw))
	assert.True(t, readAddress(t, l, contract, ledger.FieldWinner, l.Head().Height).IsZero())

	other := deploy(t, l)
	_, err = l.Send(ctx, other, ledger.OpResign, alice)
	require.NoError(t, err)
	l.Mine()
	assert.Equal(t, bob, readAddress(t, l, other, ledger.FieldWinner, l.Head().Height))
}

func TestLedger_CallAtUnknownHeight(t *testing.T) {
	l := NewLedger(NewLedgerOptions{})
	contract := deploy(t, l)

	_, err := l.Call(context.Background(), contract, ledger.FieldPlayer1, l.Head().Height+10)
	assert.Error(t, err)

	_, err = l.Call(context.Background(), contract, ledger.FieldPlayer1, 0)
	assert.Error(t, err)
}

func TestLedger_UpdateNotifiesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLedger(NewLedgerOptions{Width: 5, Rows: 4})
	contract := deploy(t, l)

	sub, err := l.Subscribe(ctx, contract, ledger.EventUpdate)
	require.NoError(t, err)
	defer sub.Cancel()

	height, err := l.Update(contract, func(c *Contract) {
		c.Field[0][0].TerritoryOwner = bob
		c.Stakes[alice] = big.NewInt(42)
	})
	require.NoError(t, err)

	select {
	case e := <-sub.Events():
		assert.Equal(t, contract, e.Contract)
		assert.Equal(t, height, e.BlockHeight)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	raw, err := l.Call(ctx, contract, ledger.FieldStakes, height, alice)
	require.NoError(t, err)
	assert.JSONEq(t, `"42"`, string(raw))
}

func TestLedger_FailSubscriptions(t *testing.T) {
	l := NewLedger(NewLedgerOptions{Width: 5, Rows: 4})
	contract := deploy(t, l)

	sub, err := l.Subscribe(context.Background(), contract, ledger.EventUpdate)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Subscribers(contract))

	boom := errors.New("connection reset")
	l.FailSubscriptions(boom)

	select {
	case err := <-sub.Err():
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("no error delivered")
	}
	assert.Equal(t, 0, l.Subscribers(contract))
	sub.Cancel()
}

func TestLedger_Node(t *testing.T) {
	ctx := context.Background()
	coinbase := NewAddress()
	l := NewLedger(NewLedgerOptions{
		Coinbase: coinbase,
		Balances: map[types.Address]*big.Int{coinbase: big.NewInt(1000)},
	})

	listening, err := l.Listening(ctx)
	require.NoError(t, err)
	assert.True(t, listening)

	got, err := l.Coinbase(ctx)
	require.NoError(t, err)
	assert.Equal(t, coinbase, got)

	balance, err := l.Balance(ctx, coinbase)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance.Int64())

	balance, err = l.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Int64())
}
