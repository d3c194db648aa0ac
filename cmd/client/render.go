package main

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/AmatanHead/points-game/pkg/game"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/pterm/pterm"
)

// multiRenderer fans one view out to several renderers.
type multiRenderer []game.Renderer

func (m multiRenderer) OnSnapshotApplied(v *types.DerivedView) {
	for _, r := range m {
		r.OnSnapshotApplied(v)
	}
}

// terminalRenderer draws the board to stdout. Identical views are drawn once.
type terminalRenderer struct {
	lock sync.Mutex
	last *types.DerivedView
}

func newTerminalRenderer() *terminalRenderer {
	return &terminalRenderer{}
}

func (r *terminalRenderer) OnSnapshotApplied(v *types.DerivedView) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.last != nil && reflect.DeepEqual(r.last, v) {
		return
	}
	r.last = v
	pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		{{Data: boardPanel(v)}, {Data: scorePanel(v)}},
	}).Render()
}

func (r *terminalRenderer) OnAlert(a *game.Alert) {
	pterm.Error.WithPrefix(pterm.Prefix{Text: a.Title, Style: pterm.NewStyle(pterm.BgRed, pterm.FgLightWhite)}).Println(a.Message)
}

func colorize(c types.Color, s string) string {
	switch c {
	case types.ColorRed:
		return pterm.LightRed(s)
	case types.ColorBlue:
		return pterm.LightBlue(s)
	}
	return s
}

func boardPanel(v *types.DerivedView) string {
	marks := make(map[types.Point]string, len(v.RedCells)+len(v.BlueCells))
	for _, t := range v.RedTerritory {
		marks[t.Point] = pterm.BgRed.Sprint(" ")
	}
	for _, t := range v.BlueTerritory {
		marks[t.Point] = pterm.BgBlue.Sprint(" ")
	}
	point := func(c types.Color, cell types.CellMark) string {
		if cell.Captured {
			return colorize(c, "·")
		}
		return colorize(c, "●")
	}
	for _, c := range v.RedCells {
		marks[c.Point] = point(types.ColorRed, c)
	}
	for _, c := range v.BlueCells {
		marks[c.Point] = point(types.ColorBlue, c)
	}

	var b strings.Builder
	b.WriteString("   ")
	for x := 0; x < v.Width; x++ {
		b.WriteString(fmt.Sprintf("%-2d", x%100))
	}
	b.WriteString("\n")
	for y := 0; y < v.Rows; y++ {
		b.WriteString(fmt.Sprintf("%2d ", y))
		for x := 0; x < v.Width; x++ {
			mark, ok := marks[types.Point{X: x, Y: y}]
			if !ok {
				mark = pterm.Gray("+")
			}
			b.WriteString(mark + " ")
		}
		b.WriteString("\n")
	}

	box := pterm.DefaultBox.WithLeftPadding(2).WithRightPadding(2).WithTitleTopCenter()
	return box.WithTitle(pterm.LightYellow(v.Caption())).Sprint(b.String())
}

func scorePanel(v *types.DerivedView) string {
	lines := []string{
		fmt.Sprintf("%s %d", pterm.LightRed("Red"), v.RedScore),
		fmt.Sprintf("%s %d", pterm.LightBlue("Blue"), v.BlueScore),
		"",
		fmt.Sprintf("You play %s", colorize(v.LocalColor, string(v.LocalColor))),
		fmt.Sprintf("Height %d", v.Height),
	}
	if v.Stale {
		lines = append(lines, pterm.Yellow("cached, refreshing..."))
	}
	if !v.GameOver {
		lines = append(lines, "", v.DrawButtonCaption)
	}
	box := pterm.DefaultBox.WithLeftPadding(2).WithRightPadding(2).WithTitle(v.Contract.String()).WithTitleTopLeft()
	return box.Sprint(strings.Join(lines, "\n"))
}
