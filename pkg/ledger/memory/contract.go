package memory

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/ledger"
)

// Contract is the storage of one game contract at one block height.
// Territory is never computed here; tests and tools set it with Update.
type Contract struct {
	Player1       types.Address
	Player2       types.Address
	CurrentPlayer types.Address
	Winner        types.Address
	GameOver      bool
	// Field is indexed as Field[x][y]
	Field        [][]types.Cell
	DrawOffers   map[types.Address]bool
	FinishOffers map[types.Address]bool
	Stakes       map[types.Address]*big.Int
	Moves        int64
}

func newContract(player1, player2 types.Address, width, rows int) *Contract {
	field := make([][]types.Cell, width)
	for x := range field {
		field[x] = make([]types.Cell, rows)
		for y := range field[x] {
			field[x][y] = types.Cell{Owner: types.ZeroAddress, TerritoryOwner: types.ZeroAddress}
		}
	}
	return &Contract{
		Player1:       player1,
		Player2:       player2,
		CurrentPlayer: player1,
		Winner:        types.ZeroAddress,
		Field:         field,
		DrawOffers:    map[types.Address]bool{player1: false, player2: false},
		FinishOffers:  map[types.Address]bool{player1: false, player2: false},
		Stakes:        map[types.Address]*big.Int{player1: big.NewInt(0), player2: big.NewInt(0)},
	}
}

func (c *Contract) clone() *Contract {
	field := make([][]types.Cell, len(c.Field))
	for x := range c.Field {
		field[x] = append([]types.Cell(nil), c.Field[x]...)
	}
	drawOffers := make(map[types.Address]bool, len(c.DrawOffers))
	for k, v := range c.DrawOffers {
		drawOffers[k] = v
	}
	finishOffers := make(map[types.Address]bool, len(c.FinishOffers))
	for k, v := range c.FinishOffers {
		finishOffers[k] = v
	}
	stakes := make(map[types.Address]*big.Int, len(c.Stakes))
	for k, v := range c.Stakes {
		stakes[k] = new(big.Int).Set(v)
	}
	return &Contract{
		Player1:       c.Player1,
		Player2:       c.Player2,
		CurrentPlayer: c.CurrentPlayer,
		Winner:        c.Winner,
		GameOver:      c.GameOver,
		Field:         field,
		DrawOffers:    drawOffers,
		FinishOffers:  finishOffers,
		Stakes:        stakes,
		Moves:         c.Moves,
	}
}

func (c *Contract) isPlayer(a types.Address) bool {
	return a.Equal(c.Player1) || a.Equal(c.Player2)
}

func (c *Contract) opponentOf(a types.Address) types.Address {
	if a.Equal(c.Player1) {
		return c.Player2
	}
	return c.Player1
}

func lookup[V any](m map[types.Address]V, a types.Address) (V, bool) {
	for k, v := range m {
		if k.Equal(a) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// read answers a field call against this version of the contract.
func (c *Contract) read(field string, args []interface{}) (interface{}, error) {
	switch field {
	case ledger.FieldPlayer1:
		return c.Player1, nil
	case ledger.FieldPlayer2:
		return c.Player2, nil
	case ledger.FieldCurrentPlayer:
		return c.CurrentPlayer, nil
	case ledger.FieldWinner:
		return c.Winner, nil
	case ledger.FieldGameOver:
		return c.GameOver, nil
	case ledger.FieldCell:
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects 2 arguments, got %d", field, len(args))
		}
		x, err := ledger.IntArg(args[0])
		if err != nil {
			return nil, err
		}
		y, err := ledger.IntArg(args[1])
		if err != nil {
			return nil, err
		}
		if x < 0 || y < 0 || x >= len(c.Field) || y >= len(c.Field[x]) {
			return nil, fmt.Errorf("cell (%d, %d) is out of range", x, y)
		}
		return c.Field[x][y], nil
	case ledger.FieldDrawOffers, ledger.FieldFinishOffers, ledger.FieldStakes:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", field, len(args))
		}
		player, err := ledger.AddressArg(args[0])
		if err != nil {
			return nil, err
		}
		switch field {
		case ledger.FieldDrawOffers:
			offered, _ := lookup(c.DrawOffers, player)
			return offered, nil
		case ledger.FieldFinishOffers:
			offered, _ := lookup(c.FinishOffers, player)
			return offered, nil
		default:
			stake, ok := lookup(c.Stakes, player)
			if !ok {
				stake = big.NewInt(0)
			}
			return stake.String(), nil
		}
	default:
		return nil, fmt.Errorf("unknown field %q", field)
	}
}

var (
	errGameOver    = errors.New("game is over")
	errNotPlayer   = errors.New("sender is not a player of this game")
	errNotYourTurn = errors.New("not your turn")
)

// apply executes op from sender on the contract in place.
func (c *Contract) apply(op ledger.Operation, from types.Address, args []interface{}) error {
	if !c.isPlayer(from) {
		return errNotPlayer
	}
	if c.GameOver {
		return errGameOver
	}

	switch op {
	case ledger.OpMove:
		if !from.Equal(c.CurrentPlayer) {
			return errNotYourTurn
		}
		if len(args) != 2 {
			return fmt.Errorf("move expects 2 arguments, got %d", len(args))
		}
		x, err := ledger.IntArg(args[0])
		if err != nil {
			return err
		}
		y, err := ledger.IntArg(args[1])
		if err != nil {
			return err
		}
		if x < 0 || y < 0 || x >= len(c.Field) || y >= len(c.Field[x]) {
			return fmt.Errorf("cell (%d, %d) is out of range", x, y)
		}
		if !c.Field[x][y].Owner.IsZero() {
			return fmt.Errorf("cell (%d, %d) is taken", x, y)
		}
		if !c.Field[x][y].TerritoryOwner.IsZero() {
			return fmt.Errorf("cell (%d, %d) is inside a territory", x, y)
		}
		c.Moves++
		c.Field[x][y].Owner = from
		c.Field[x][y].MoveIndex = c.Moves
		c.CurrentPlayer = c.opponentOf(from)
	case ledger.OpOfferDraw:
		c.setOffer(c.DrawOffers, from, true)
		if offered, _ := lookup(c.DrawOffers, c.opponentOf(from)); offered {
			c.GameOver = true
			c.Winner = types.ZeroAddress
		}
	case ledger.OpRevokeDrawOffer:
		c.setOffer(c.DrawOffers, from, false)
	case ledger.OpResign:
		c.GameOver = true
		c.Winner = c.opponentOf(from)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	return nil
}

func (c *Contract) setOffer(offers map[types.Address]bool, player types.Address, value bool) {
	for k := range offers {
		if k.Equal(player) {
			offers[k] = value
			return
		}
	}
	offers[player] = value
}
