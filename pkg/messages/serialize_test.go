package messages

import (
	"math/big"
	"testing"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeSnapshot(t *testing.T) {
	const (
		alice types.Address = "0x00000000000000000000000000000000000000a1"
		bob   types.Address = "0x00000000000000000000000000000000000000b0"
	)

	s := types.NewGameSnapshot("0x00000000000000000000000000000000000000c0", 42, 20, 15)
	s.Player1 = alice
	s.Player2 = bob
	s.CurrentPlayer = bob
	s.Winner = types.ZeroAddress
	for x := range s.Field {
		for y := range s.Field[x] {
			s.Field[x][y] = types.Cell{Owner: types.ZeroAddress, TerritoryOwner: types.ZeroAddress}
		}
	}
	s.Field[0][0] = types.Cell{Owner: alice, TerritoryOwner: bob, MoveIndex: 1}
	s.Field[19][14] = types.Cell{Owner: bob, TerritoryOwner: types.ZeroAddress, MoveIndex: 2}
	s.DrawOffers[alice] = true
	s.DrawOffers[bob] = false
	s.FinishOffers[alice] = false
	s.FinishOffers[bob] = false
	s.Stakes[alice] = big.NewInt(1000)
	s.Stakes[bob] = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)

	b, err := SerializeSnapshot(s)
	require.NoError(t, err)

	got, err := DeserializeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestDeserializeSnapshot_Garbage(t *testing.T) {
	_, err := DeserializeSnapshot([]byte("not a snapshot"))
	assert.Error(t, err)
}

func TestNewMessage(t *testing.T) {
	m, err := NewMessage(MessageTypeServerView, map[string]int{"height": 3})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeServerView, m.Type)
	assert.JSONEq(t, `{"height":3}`, string(m.Payload))
}
