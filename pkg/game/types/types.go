package types

import (
	"strings"
)

// ZeroAddress is the identity the ledger reports for "nobody": empty cells,
// an undecided winner, or a drawn game.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// Address identifies a player account or a game contract on the ledger.
type Address string

// ParseAddress normalizes a user supplied address.
func ParseAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

// IsZero reports whether the address is empty or the zero address.
func (a Address) IsZero() bool {
	return a == "" || a.Equal(ZeroAddress)
}

// Equal compares addresses ignoring hex letter case.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

func (a Address) String() string {
	return string(a)
}

// Point is a grid coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cell is one grid intersection as stored by the game contract.
type Cell struct {
	Owner          Address `json:"owner"`
	TerritoryOwner Address `json:"territoryOwner"`
	MoveIndex      int64   `json:"moveIndex"`
}

// OwnedBy reports whether the point on this cell was placed by player.
func (c Cell) OwnedBy(player Address) bool {
	return !c.Owner.IsZero() && c.Owner.Equal(player)
}

// TerritoryOf reports whether the cell lies inside player's territory.
func (c Cell) TerritoryOf(player Address) bool {
	return !c.TerritoryOwner.IsZero() && c.TerritoryOwner.Equal(player)
}
