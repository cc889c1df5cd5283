package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/qlearn"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region grid-map
// Cell glyphs of the exploration map.
const (
	GlyphGoal    = "G"
	GlyphDanger  = "X"
	GlyphUnknown = "·"
)

var arrows = map[trajectory.Action]string{
	trajectory.ActionUp:    "↑",
	trajectory.ActionRight: "→",
	trajectory.ActionDown:  "↓",
	trajectory.ActionLeft:  "←",
}

type cell struct {
	best  trajectory.Action
	value float64
}

// Grid is the exploration map derived from a bundle: the best Q action per
// visited position plus the goal and danger zones.
type Grid struct {
	MinX, MaxX, MinY, MaxY int
	cells                  map[trajectory.Position]cell
	danger                 map[trajectory.Position]bool
	goal                   *trajectory.Position
}

// NewGrid builds the map. Positions with several Q rows keep the row with
// the highest value.
func NewGrid(b *artifact.Bundle) (*Grid, error) {
	g := &Grid{
		cells:  make(map[trajectory.Position]cell),
		danger: make(map[trajectory.Position]bool),
	}
	first := true
	include := func(p trajectory.Position) {
		if first {
			g.MinX, g.MaxX, g.MinY, g.MaxY = p.X, p.X, p.Y, p.Y
			first = false
			return
		}
		g.MinX, g.MaxX = min(g.MinX, p.X), max(g.MaxX, p.X)
		g.MinY, g.MaxY = min(g.MinY, p.Y), max(g.MaxY, p.Y)
	}

	for text, values := range b.QTable {
		k, err := trajectory.ParseFullKey(text)
		if err != nil {
			return nil, fmt.Errorf("parse q table key: %w", err)
		}
		p := trajectory.Position{X: k.X, Y: k.Y}
		row := qlearn.Row(values)
		c := cell{best: row.Best(), value: row.Max()}
		if prev, ok := g.cells[p]; !ok || c.value > prev.value {
			g.cells[p] = c
		}
		include(p)
	}
	for _, p := range b.Model.DangerZones {
		g.danger[p] = true
		include(p)
	}
	if p, ok := b.Model.EstimatedGoal.Position(); ok {
		g.goal = &p
		include(p)
	}
	if first {
		return nil, fmt.Errorf("bundle has no positions")
	}
	return g, nil
}

// Glyph returns the uncolored symbol of p.
func (g *Grid) Glyph(p trajectory.Position) string {
	switch {
	case g.goal != nil && *g.goal == p:
		return GlyphGoal
	case g.danger[p]:
		return GlyphDanger
	}
	c, ok := g.cells[p]
	if !ok {
		return GlyphUnknown
	}
	if c.value == 0 {
		return "0"
	}
	return arrows[c.best]
}

// Render prints the map with +y at the top. color toggles ANSI output.
func (g *Grid) Render(w io.Writer, color bool) error {
	au := aurora.NewAurora(color)
	var sb strings.Builder
	for y := g.MaxY; y >= g.MinY; y-- {
		fmt.Fprintf(&sb, "%4d ", y)
		for x := g.MinX; x <= g.MaxX; x++ {
			p := trajectory.Position{X: x, Y: y}
			glyph := g.Glyph(p)
			var v aurora.Value
			switch glyph {
			case GlyphGoal:
				v = au.Green(glyph).Bold()
			case GlyphDanger:
				v = au.Red(glyph).Bold()
			case GlyphUnknown:
				v = au.Gray(12, glyph)
			default:
				if g.cells[p].value > 0 {
					v = au.Blue(glyph)
				} else {
					v = au.Yellow(glyph)
				}
			}
			fmt.Fprintf(&sb, " %s", v)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("     ")
	for x := g.MinX; x <= g.MaxX; x++ {
		fmt.Fprintf(&sb, " %d", abs(x)%10)
	}
	sb.WriteString("\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// #endregion grid-map
