package knowledge

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region decision-weights
// DecisionWeights are the scalar heuristics read by the engine's
// score-based decision rule.
type DecisionWeights struct {
	HoleFearIndex    float64 `json:"hole_fear_index"`    // -5..0, lower avoids holes harder
	TrapInterest     float64 `json:"trap_interest"`      // -1..1
	GoalBias         float64 `json:"goal_bias"`          // 0..1
	GoalApproachRate float64 `json:"goal_approach_rate"` // 0..1
}

// DefaultWeights are used field by field when a statistic has no samples.
func DefaultWeights() DecisionWeights {
	return DecisionWeights{
		HoleFearIndex:    -2.5,
		TrapInterest:     0.0,
		GoalBias:         0.5,
		GoalApproachRate: 0.5,
	}
}

type adjacency struct {
	approach, avoid int
}

func (a *adjacency) observe(s trajectory.Step, tile trajectory.Tile) {
	adjacent := s.Up == tile || s.Right == tile || s.Down == tile || s.Left == tile
	if !adjacent {
		return
	}
	if s.Neighbor(s.Action) == tile {
		a.approach++
	} else {
		a.avoid++
	}
}

func (a adjacency) ratio() (float64, bool) {
	total := a.approach + a.avoid
	if total == 0 {
		return 0, false
	}
	return float64(a.approach) / float64(total), true
}

// Weights derives the decision weights from how the demonstrator moved when a
// hole, trap, or goal tile was adjacent, and how often it moved toward the
// estimated goal. Rows with an invalid action are ignored.
func Weights(exp *trajectory.Experience, k Knowledge) DecisionWeights {
	var hole, trap, goal adjacency
	matches, total := 0, 0

	for _, tr := range exp.Transitions {
		s := tr.Step
		if !s.Action.Valid() {
			continue
		}
		hole.observe(s, trajectory.TileHole)
		trap.observe(s, trajectory.TileTrap)
		goal.observe(s, trajectory.TileGoal)

		if k.Goal != nil {
			toward := towardGoal(s.Pos, *k.Goal)
			if len(toward) > 0 {
				total++
				for _, a := range toward {
					if a == s.Action {
						matches++
						break
					}
				}
			}
		}
	}

	w := DefaultWeights()
	if r, ok := hole.ratio(); ok {
		w.HoleFearIndex = round2(-5.0 * (1.0 - r))
	}
	if r, ok := trap.ratio(); ok {
		w.TrapInterest = round2(2.0*r - 1.0)
	}
	if total > 0 {
		w.GoalBias = round2(float64(matches) / float64(total))
	}
	if r, ok := goal.ratio(); ok {
		w.GoalApproachRate = round2(r)
	}
	return w
}

// towardGoal lists the actions that reduce the Manhattan distance to goal.
// Up is +y and right is +x.
func towardGoal(p, goal trajectory.Position) []trajectory.Action {
	var out []trajectory.Action
	dx, dy := goal.X-p.X, goal.Y-p.Y
	if dy > 0 {
		out = append(out, trajectory.ActionUp)
	}
	if dy < 0 {
		out = append(out, trajectory.ActionDown)
	}
	if dx > 0 {
		out = append(out, trajectory.ActionRight)
	}
	if dx < 0 {
		out = append(out, trajectory.ActionLeft)
	}
	return out
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// #endregion decision-weights

// #region direction-scores
// TileScores is the score the engine adds for stepping onto each tile type.
type TileScores struct {
	Hole int `json:"hole"`
	Flat int `json:"flat"`
	Goal int `json:"goal"`
	Trap int `json:"trap"`
}

// Scores is the additive direction-scoring table.
type Scores struct {
	TileScores         TileScores `json:"tile_scores"`
	GoalDirectionBonus int        `json:"goal_direction_bonus"`
	RevisitPenalty     int        `json:"revisit_penalty"`
	UnexploredBonus    int        `json:"unexplored_bonus"`
}

// DefaultScores returns the table used before any data adjusts it.
func DefaultScores() Scores {
	return Scores{
		TileScores:         TileScores{Hole: -100, Flat: 0, Goal: 100, Trap: -10},
		GoalDirectionBonus: 10,
		RevisitPenalty:     -5,
		UnexploredBonus:    5,
	}
}

// DirectionScores adjusts the hole score to the mean reward observed on hole
// tiles and the goal score to a tenth of the mean goal reward, truncated.
func DirectionScores(exp *trajectory.Experience) Scores {
	s := DefaultScores()
	goalReward := exp.TerminalConfig().GoalReward

	var holes, goals []float64
	for _, tr := range exp.Transitions {
		if tr.Step.Env == trajectory.TileHole {
			holes = append(holes, tr.Reward)
		}
		if tr.Reward >= goalReward {
			goals = append(goals, tr.Reward)
		}
	}
	if len(holes) > 0 {
		s.TileScores.Hole = int(stat.Mean(holes, nil))
	}
	if len(goals) > 0 {
		s.TileScores.Goal = int(stat.Mean(goals, nil) / 10)
	}
	return s
}

// #endregion direction-scores
