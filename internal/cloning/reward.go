package cloning

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region reward-gradient
// RewardStats summarizes the rewards observed in one environment pattern.
type RewardStats struct {
	Avg   float64 `json:"avg"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	Count int     `json:"count"`
}

// RewardGradient groups rewards by environment-only key. Rewards do not
// depend on the chosen action, so invalid-action rows are included.
func RewardGradient(trs []trajectory.Transition) map[trajectory.EnvKey]RewardStats {
	grouped := make(map[trajectory.EnvKey][]float64)
	for _, tr := range trs {
		k := trajectory.EnvKeyOf(tr.Step)
		grouped[k] = append(grouped[k], tr.Reward)
	}
	out := make(map[trajectory.EnvKey]RewardStats, len(grouped))
	for k, rewards := range grouped {
		out[k] = RewardStats{
			Avg:   stat.Mean(rewards, nil),
			Max:   floats.Max(rewards),
			Min:   floats.Min(rewards),
			Count: len(rewards),
		}
	}
	return out
}

// EncodeGradient renders a reward gradient with text keys.
func EncodeGradient(g map[trajectory.EnvKey]RewardStats) map[string]RewardStats {
	out := make(map[string]RewardStats, len(g))
	for k, s := range g {
		out[k.String()] = s
	}
	return out
}

// #endregion reward-gradient

// #region goal-positions
// GoalPositions counts how often each position produced a goal-level reward.
func GoalPositions(trs []trajectory.Transition, goalReward float64) map[trajectory.Position]int {
	out := make(map[trajectory.Position]int)
	for _, tr := range trs {
		if tr.Reward >= goalReward {
			out[tr.Step.Pos]++
		}
	}
	return out
}

// EncodeGoalPositions renders goal counts keyed "(x, y)".
func EncodeGoalPositions(g map[trajectory.Position]int) map[string]int {
	out := make(map[string]int, len(g))
	for p, n := range g {
		out[fmt.Sprintf("(%d, %d)", p.X, p.Y)] = n
	}
	return out
}

// #endregion goal-positions
