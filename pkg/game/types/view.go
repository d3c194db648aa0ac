package types

// Color is the side a player plays on the board.
type Color string

const (
	ColorRed  Color = "red"
	ColorBlue Color = "blue"
	ColorNone Color = ""
)

// CellMark is a classified cell as handed to renderers.
type CellMark struct {
	Point
	Cell
	// Captured is set on points that lie in the opponent's territory
	Captured bool `json:"captured"`
}

// DerivedView is everything a renderer needs to draw one snapshot. It is
// recomputed from every applied snapshot and never persisted.
type DerivedView struct {
	Contract Address `json:"contract"`
	Height   uint64  `json:"height"`
	Width    int     `json:"width"`
	Rows     int     `json:"rows"`
	Player1  Address `json:"player1"`
	Player2  Address `json:"player2"`

	RedCells      []CellMark `json:"redCells"`
	BlueCells     []CellMark `json:"blueCells"`
	RedTerritory  []CellMark `json:"redTerritory"`
	BlueTerritory []CellMark `json:"blueTerritory"`
	RedScore      int        `json:"redScore"`
	BlueScore     int        `json:"blueScore"`

	// TurnCaption is "Your move" or "Waiting"
	TurnCaption string `json:"turnCaption"`
	// OutcomeCaption is empty until the game is over
	OutcomeCaption string `json:"outcomeCaption"`
	GameOver       bool   `json:"gameOver"`
	// ActiveMove is true when the local player may submit a move
	ActiveMove bool  `json:"activeMove"`
	LocalColor Color `json:"localColor"`

	DrawOffers        int    `json:"drawOffers"`
	DrawOffered       bool   `json:"drawOffered"`
	DrawButtonCaption string `json:"drawButtonCaption"`

	// Stale marks a view rendered from a cached snapshot before the first
	// fetch of the session completed.
	Stale bool `json:"stale"`
}

// Caption is the header text: the outcome once the game is over, the turn
// caption before that.
func (v *DerivedView) Caption() string {
	if v.OutcomeCaption != "" {
		return v.OutcomeCaption
	}
	return v.TurnCaption
}
