package knowledge

import (
	"sort"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region config
// Config bounds the knowledge extraction.
type Config struct {
	DangerTopK int // danger zones kept (default 10)
}

// DefaultConfig returns the extraction defaults.
func DefaultConfig() Config {
	return Config{DangerTopK: 10}
}

// #endregion config

// #region knowledge
// Knowledge is derived once per run from the aggregate position statistics.
type Knowledge struct {
	Goal       *trajectory.Position // nil when no goal was ever reached
	GoalHits   int                  // hits at the estimated goal
	Danger     []trajectory.Position
	DangerSeen int // distinct fall-like positions before truncation
	Unexplored []trajectory.Position
}

// GoalKnown reports whether a goal estimate exists.
func (k Knowledge) GoalKnown() bool {
	return k.Goal != nil
}

// #endregion knowledge

// #region extract
// Extract estimates the goal, ranks danger zones, and lists the unexplored
// cells inside the visited bounding box. The unexplored scan is O(w·h) and
// only suits small grid levels.
func Extract(exp *trajectory.Experience, cfg Config) Knowledge {
	var k Knowledge

	goals := rank(exp.GoalHits)
	if len(goals) > 0 {
		// rank is stable, so the first maximum in encounter order wins
		best := goals[0]
		k.Goal = &best.pos
		k.GoalHits = best.n
	}

	dangers := rank(exp.FallHits)
	k.DangerSeen = len(dangers)
	topK := cfg.DangerTopK
	if topK < 0 || topK > len(dangers) {
		topK = len(dangers)
	}
	for _, d := range dangers[:topK] {
		k.Danger = append(k.Danger, d.pos)
	}

	k.Unexplored = unexplored(exp.Visited)
	return k
}

type freq struct {
	pos trajectory.Position
	n   int
}

// rank counts positions and orders them by descending frequency. Ties keep
// first-seen order.
func rank(hits []trajectory.Position) []freq {
	index := make(map[trajectory.Position]int)
	var out []freq
	for _, p := range hits {
		i, ok := index[p]
		if !ok {
			i = len(out)
			index[p] = i
			out = append(out, freq{pos: p})
		}
		out[i].n++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].n > out[j].n })
	return out
}

func unexplored(visited map[trajectory.Position]struct{}) []trajectory.Position {
	if len(visited) == 0 {
		return nil
	}
	first := true
	var minX, maxX, minY, maxY int
	for p := range visited {
		if first {
			minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
			first = false
			continue
		}
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	var out []trajectory.Position
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			p := trajectory.Position{X: x, Y: y}
			if _, ok := visited[p]; !ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// #endregion extract
