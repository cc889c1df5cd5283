package artifact

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/cloning"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/knowledge"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region file-names
// File names read by the game engine.
const (
	QTableFile         = "ai-model_q_table.json"
	ILPolicyFile       = "ai-model_il_policy.json"
	BCPolicyFile       = "bc_policy.json"
	RewardGradientFile = "reward_gradient.json"
	GoalPositionsFile  = "goal_positions.json"
	ModelDataFile      = "model_data.json"
	ParametersFile     = "parameters.json"

	ModelVersion = "1.0"
)

// #endregion file-names

// #region model-data
// Goal is the estimated goal as written to model_data.json. Unknown goals
// are written as (-1, -1) with Known false.
type Goal struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Known bool `json:"known"`
}

// GoalOf converts a knowledge goal estimate.
func GoalOf(k knowledge.Knowledge) Goal {
	if k.Goal == nil {
		return Goal{X: -1, Y: -1}
	}
	return Goal{X: k.Goal.X, Y: k.Goal.Y, Known: true}
}

// Position returns the goal position when known.
func (g Goal) Position() (trajectory.Position, bool) {
	return trajectory.Position{X: g.X, Y: g.Y}, g.Known
}

// ModelData is the bundle the engine's score-based decision rule reads.
// BCPolicy holds either map[string]cloning.Distribution or the counts form.
type ModelData struct {
	Version         string                    `json:"version"`
	GeneratedAt     string                    `json:"generated_at"`
	EstimatedGoal   Goal                      `json:"estimated_goal"`
	DangerZones     []trajectory.Position     `json:"danger_zones"`
	BCPolicy        any                       `json:"bc_policy"`
	DecisionWeights knowledge.DecisionWeights `json:"decision_weights"`
	DirectionScores knowledge.Scores          `json:"direction_scores"`
}

// NewModelData assembles model_data.json content.
func NewModelData(k knowledge.Knowledge, bc any, w knowledge.DecisionWeights, s knowledge.Scores, now time.Time) ModelData {
	danger := k.Danger
	if danger == nil {
		danger = []trajectory.Position{}
	}
	return ModelData{
		Version:         ModelVersion,
		GeneratedAt:     now.Format(time.RFC3339),
		EstimatedGoal:   GoalOf(k),
		DangerZones:     danger,
		BCPolicy:        bc,
		DecisionWeights: w,
		DirectionScores: s,
	}
}

// #endregion model-data

// #region parameters
// Parameters is the human-readable summary written next to the model.
type Parameters struct {
	EstimatedGoal string            `json:"estimated_goal"`
	HoleFearIndex float64           `json:"hole_fear_index"`
	TrapInterest  float64           `json:"trap_interest"`
	GoalBias      float64           `json:"goal_bias"`
	Description   map[string]string `json:"description"`
	Statistics    Statistics        `json:"statistics"`
}

// Statistics counts what the model was derived from.
type Statistics struct {
	BCStates        int `json:"bc_states"`
	DangerZones     int `json:"danger_zones"`
	UnexploredAreas int `json:"unexplored_areas"`
}

// NewParameters assembles parameters.json content.
func NewParameters(k knowledge.Knowledge, w knowledge.DecisionWeights, bcStates int) Parameters {
	goal := "unknown"
	if k.Goal != nil {
		goal = fmt.Sprintf("%d,%d", k.Goal.X, k.Goal.Y)
	}
	return Parameters{
		EstimatedGoal: goal,
		HoleFearIndex: w.HoleFearIndex,
		TrapInterest:  w.TrapInterest,
		GoalBias:      w.GoalBias,
		Description: map[string]string{
			"estimated_goal":  "estimated goal coordinate (x,y)",
			"hole_fear_index": "hole avoidance strength (more negative avoids harder)",
			"trap_interest":   "attraction to traps (-1.0 avoids, 1.0 seeks)",
			"goal_bias":       "preference for moving toward the goal (0.0 to 1.0)",
		},
		Statistics: Statistics{
			BCStates:        bcStates,
			DangerZones:     len(k.Danger),
			UnexploredAreas: len(k.Unexplored),
		},
	}
}

// #endregion parameters

// #region bundle
// Bundle is every artifact of one training run in exported form.
type Bundle struct {
	QTable         map[string][5]float64
	ILPolicy       map[string]int
	BCFormat       cloning.Format
	BCPolicy       map[string]cloning.Distribution // always set; derived from counts when BCFormat is counts
	BCCounts       map[string]map[string]int       // set only when BCFormat is counts
	RewardGradient map[string]cloning.RewardStats
	GoalPositions  map[string]int
	Model          ModelData
	Parameters     Parameters
}

// BCEncoded returns the behavior-cloning table in its configured format.
func (b *Bundle) BCEncoded() any {
	if b.BCFormat == cloning.FormatCounts {
		return b.BCCounts
	}
	return b.BCPolicy
}

// File describes one written artifact.
type File struct {
	Name     string
	Path     string
	Bytes    int64
	Checksum string // sha256 hex
	Entries  int
}

// #endregion bundle
