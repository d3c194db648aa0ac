package types

import (
	"math/big"
)

// GameSnapshot is one consistent copy of the game contract state. Every field
// was read at the same block Height. A snapshot is never modified after the
// fetch that produced it returns.
type GameSnapshot struct {
	// Contract is the address of the game contract the snapshot was read from
	Contract Address `json:"contract"`
	// Height is the block height all reads were pinned to
	Height uint64 `json:"height"`
	// Field is indexed as Field[x][y]
	Field         [][]Cell             `json:"field"`
	Player1       Address              `json:"player1"`
	Player2       Address              `json:"player2"`
	CurrentPlayer Address              `json:"currentPlayer"`
	Winner        Address              `json:"winner"`
	GameOver      bool                 `json:"gameOver"`
	DrawOffers    map[Address]bool     `json:"drawOffers"`
	FinishOffers  map[Address]bool     `json:"finishOffers"`
	Stakes        map[Address]*big.Int `json:"stakes"`
}

// NewGameSnapshot allocates an empty width x height snapshot.
func NewGameSnapshot(contract Address, height uint64, width, rows int) *GameSnapshot {
	field := make([][]Cell, width)
	for x := range field {
		field[x] = make([]Cell, rows)
	}
	return &GameSnapshot{
		Contract:     contract,
		Height:       height,
		Field:        field,
		DrawOffers:   make(map[Address]bool),
		FinishOffers: make(map[Address]bool),
		Stakes:       make(map[Address]*big.Int),
	}
}

// Width returns the number of columns.
func (s *GameSnapshot) Width() int {
	return len(s.Field)
}

// Rows returns the number of rows.
func (s *GameSnapshot) Rows() int {
	if len(s.Field) == 0 {
		return 0
	}
	return len(s.Field[0])
}

// Cell returns the cell at (x, y).
func (s *GameSnapshot) Cell(x, y int) Cell {
	return s.Field[x][y]
}

// Contains reports whether (x, y) is on the grid.
func (s *GameSnapshot) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.Width() && y < s.Rows()
}

// DrawOffered reports whether player currently offers a draw.
func (s *GameSnapshot) DrawOffered(player Address) bool {
	for p, offered := range s.DrawOffers {
		if p.Equal(player) {
			return offered
		}
	}
	return false
}

// GameState is what the engine currently shows: the latest applied snapshot
// and the view derived from it.
type GameState struct {
	Contract Address       `json:"contract"`
	Snapshot *GameSnapshot `json:"snapshot"`
	View     *DerivedView  `json:"view"`
}

func (g *GameState) Copy() *GameState {
	return &GameState{
		Contract: g.Contract,
		Snapshot: g.Snapshot,
		View:     g.View,
	}
}
