// Package view turns raw game snapshots into what a renderer draws.
package view

import (
	"fmt"

	"github.com/AmatanHead/points-game/pkg/game/types"
)

const (
	CaptionYourMove = "Your move"
	CaptionWaiting  = "Waiting"
	CaptionDraw     = "A draw"
	CaptionWon      = "You won"
	CaptionLost     = "You lost"
)

// Derive computes the view of snapshot for the local player me. It does not
// modify snapshot and always returns the same view for the same inputs.
func Derive(snapshot *types.GameSnapshot, me types.Address) *types.DerivedView {
	red, blue := snapshot.Player1, snapshot.Player2

	v := &types.DerivedView{
		Contract:      snapshot.Contract,
		Height:        snapshot.Height,
		Width:         snapshot.Width(),
		Rows:          snapshot.Rows(),
		Player1:       red,
		Player2:       blue,
		RedCells:      []types.CellMark{},
		BlueCells:     []types.CellMark{},
		RedTerritory:  []types.CellMark{},
		BlueTerritory: []types.CellMark{},
		GameOver:      snapshot.GameOver,
	}

	// Field is walked column by column so the mark order is stable.
	for x := 0; x < v.Width; x++ {
		for y := 0; y < v.Rows; y++ {
			cell := snapshot.Cell(x, y)
			p := types.Point{X: x, Y: y}

			switch {
			case cell.OwnedBy(red):
				v.RedCells = append(v.RedCells, types.CellMark{Point: p, Cell: cell, Captured: cell.TerritoryOf(blue)})
			case cell.OwnedBy(blue):
				v.BlueCells = append(v.BlueCells, types.CellMark{Point: p, Cell: cell, Captured: cell.TerritoryOf(red)})
			}

			switch {
			case cell.TerritoryOf(red):
				v.RedTerritory = append(v.RedTerritory, types.CellMark{Point: p, Cell: cell})
			case cell.TerritoryOf(blue):
				v.BlueTerritory = append(v.BlueTerritory, types.CellMark{Point: p, Cell: cell})
			}

			// a capture is the opponent's point under one's own territory
			if cell.OwnedBy(blue) && cell.TerritoryOf(red) {
				v.RedScore++
			}
			if cell.OwnedBy(red) && cell.TerritoryOf(blue) {
				v.BlueScore++
			}
		}
	}

	v.ActiveMove = !me.IsZero() && snapshot.CurrentPlayer.Equal(me) && !snapshot.GameOver
	if v.ActiveMove {
		v.TurnCaption = CaptionYourMove
	} else {
		v.TurnCaption = CaptionWaiting
	}
	if snapshot.GameOver {
		v.OutcomeCaption = outcome(snapshot.Winner, me)
	}

	switch {
	case !me.IsZero() && me.Equal(red):
		v.LocalColor = types.ColorRed
	case !me.IsZero() && me.Equal(blue):
		v.LocalColor = types.ColorBlue
	default:
		v.LocalColor = types.ColorNone
	}

	if snapshot.DrawOffered(red) {
		v.DrawOffers++
	}
	if !blue.Equal(red) && snapshot.DrawOffered(blue) {
		v.DrawOffers++
	}
	v.DrawOffered = !me.IsZero() && snapshot.DrawOffered(me)
	v.DrawButtonCaption = drawButtonCaption(v.DrawOffered, v.DrawOffers)

	return v
}

func outcome(winner, me types.Address) string {
	if winner.IsZero() {
		return CaptionDraw
	}
	if winner.Equal(me) {
		return CaptionWon
	}
	return CaptionLost
}

func drawButtonCaption(offered bool, offers int) string {
	caption := "Offer a draw"
	if offered {
		caption = "Revoke draw offer"
	}
	if offers > 0 {
		caption = fmt.Sprintf("%s (%d / 2)", caption, offers)
	}
	return caption
}
