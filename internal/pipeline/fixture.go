package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/cloning"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/imitation"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/knowledge"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/qlearn"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a regression fixture: a small
// set of demonstration episodes plus the outputs a training run must produce.
type Fixture struct {
	Description string           `json:"description"`
	Config      FixtureConfig    `json:"config"`
	Episodes    []FixtureEpisode `json:"episodes"`
	Expected    FixtureExpected  `json:"expected"`
}

// FixtureConfig overrides pipeline defaults. Zero fields keep the default;
// the reward thresholds are pointers so a zero threshold can be stored.
type FixtureConfig struct {
	Seed           int64    `json:"seed"`
	Epochs         int      `json:"epochs,omitempty"`
	Gamma          float64  `json:"gamma,omitempty"`
	Alpha          float64  `json:"alpha,omitempty"`
	ImitationBonus float64  `json:"imitation_bonus,omitempty"`
	TerminalRule   string   `json:"terminal_rule,omitempty"`
	GoalReward     *float64 `json:"goal_reward,omitempty"`
	FallReward     *float64 `json:"fall_reward,omitempty"`
	NeutralReward  *float64 `json:"neutral_reward,omitempty"`
	ILKeySpace     string   `json:"il_key_space,omitempty"`
	BCKeySpace     string   `json:"bc_key_space,omitempty"`
	BCFormat       string   `json:"bc_format,omitempty"`
	DangerTopK     int      `json:"danger_top_k,omitempty"`
}

// FixtureEpisode holds one episode. Each row is
// [x, y, env, up, down, right, left, action, reward].
type FixtureEpisode struct {
	ID   string       `json:"id"`
	Rows [][9]float64 `json:"rows"`
}

// FixtureExpected captures the outputs compared after training.
type FixtureExpected struct {
	Transitions   int                        `json:"transitions"`
	Terminal      int                        `json:"terminal"`
	QRows         int                        `json:"q_rows"`
	ILStates      int                        `json:"il_states"`
	BCStates      int                        `json:"bc_states"`
	EstimatedGoal *trajectory.Position       `json:"estimated_goal"`
	DangerZones   []trajectory.Position      `json:"danger_zones"`
	Unexplored    int                        `json:"unexplored"`
	ILActions     map[string]int             `json:"il_actions,omitempty"`
	BestActions   map[string]int             `json:"best_actions,omitempty"` // argmax of the Q row
	Weights       *knowledge.DecisionWeights `json:"decision_weights,omitempty"`
}

// Mismatch is one field whose trained value differs from the fixture.
type Mismatch struct {
	Field string
	Want  string
	Got   string
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToConfig applies the fixture overrides to DefaultConfig.
func (fc *FixtureConfig) ToConfig() Config {
	cfg := DefaultConfig()
	cfg.QLearn.Seed = fc.Seed
	if fc.Epochs > 0 {
		cfg.QLearn.Epochs = fc.Epochs
	}
	if fc.Gamma != 0 {
		cfg.QLearn.Gamma = fc.Gamma
	}
	if fc.Alpha != 0 {
		cfg.QLearn.Alpha = fc.Alpha
	}
	cfg.QLearn.ImitationBonus = fc.ImitationBonus
	if fc.TerminalRule != "" {
		cfg.Terminal.Rule = trajectory.TerminalRule(fc.TerminalRule)
	}
	if fc.GoalReward != nil {
		cfg.Terminal.GoalReward = *fc.GoalReward
	}
	if fc.FallReward != nil {
		cfg.Terminal.FallReward = *fc.FallReward
	}
	if fc.NeutralReward != nil {
		cfg.Terminal.NeutralReward = *fc.NeutralReward
	}
	if fc.ILKeySpace != "" {
		cfg.ILKeySpace = imitation.KeySpace(fc.ILKeySpace)
	}
	if fc.BCKeySpace != "" {
		cfg.BCKeySpace = cloning.KeySpace(fc.BCKeySpace)
	}
	if fc.BCFormat != "" {
		cfg.BCFormat = cloning.Format(fc.BCFormat)
	}
	if fc.DangerTopK > 0 {
		cfg.Knowledge.DangerTopK = fc.DangerTopK
	}
	return cfg
}

// ToSteps converts the episode rows to steps.
func (fe *FixtureEpisode) ToSteps() []trajectory.Step {
	steps := make([]trajectory.Step, len(fe.Rows))
	for i, r := range fe.Rows {
		steps[i] = trajectory.Step{
			Episode: fe.ID,
			Time:    i,
			Pos:     trajectory.Position{X: int(r[0]), Y: int(r[1])},
			Env:     trajectory.Tile(int(r[2])),
			Up:      trajectory.Tile(int(r[3])),
			Down:    trajectory.Tile(int(r[4])),
			Right:   trajectory.Tile(int(r[5])),
			Left:    trajectory.Tile(int(r[6])),
			Action:  trajectory.Action(int(r[7])),
			Reward:  r[8],
		}
	}
	return steps
}

// Experience builds the experience store for the fixture episodes.
func (f *Fixture) Experience(cfg Config) (*trajectory.Experience, error) {
	episodes := make([][]trajectory.Step, len(f.Episodes))
	for i := range f.Episodes {
		episodes[i] = f.Episodes[i].ToSteps()
	}
	return BuildExperience(episodes, cfg.Terminal)
}

// #endregion fixture-loader

// #region fixture-run

// RunFixture trains on the fixture episodes and compares the outputs with
// the expected section. The training clock is fixed so runs are repeatable.
func RunFixture(ctx context.Context, f *Fixture) (*Result, []Mismatch, error) {
	cfg := f.Config.ToConfig()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("fixture config: %w", err)
	}
	exp, err := f.Experience(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := Train(ctx, exp, cfg, qlearn.NewRand(cfg.QLearn.Seed), time.Unix(0, 0).UTC(), nil)
	if err != nil {
		return nil, nil, err
	}
	return res, Compare(f.Expected, Observe(exp, res)), nil
}

// Observe extracts the comparable outputs of a training run.
func Observe(exp *trajectory.Experience, res *Result) FixtureExpected {
	got := FixtureExpected{
		Transitions: exp.Len(),
		Terminal:    exp.TerminalCount(),
		QRows:       len(res.QLearn.Table),
		ILStates:    res.ILStates,
		BCStates:    res.BCStates,
		DangerZones: res.Knowledge.Danger,
		Unexplored:  len(res.Knowledge.Unexplored),
		ILActions:   res.Bundle.ILPolicy,
		BestActions: make(map[string]int, len(res.QLearn.Table)),
	}
	if res.Knowledge.Goal != nil {
		g := *res.Knowledge.Goal
		got.EstimatedGoal = &g
	}
	for k, row := range res.QLearn.Table {
		if row.Max() != 0 {
			got.BestActions[k.String()] = int(row.Best())
		}
	}
	w := res.Bundle.Model.DecisionWeights
	got.Weights = &w
	return got
}

// Compare reports every expected field that got does not match. Map and
// weight expectations are only checked when present in want.
func Compare(want, got FixtureExpected) []Mismatch {
	var out []Mismatch
	check := func(field string, w, g any) {
		ws, gs := fmt.Sprint(w), fmt.Sprint(g)
		if ws != gs {
			out = append(out, Mismatch{Field: field, Want: ws, Got: gs})
		}
	}
	check("transitions", want.Transitions, got.Transitions)
	check("terminal", want.Terminal, got.Terminal)
	check("q_rows", want.QRows, got.QRows)
	check("il_states", want.ILStates, got.ILStates)
	check("bc_states", want.BCStates, got.BCStates)
	check("estimated_goal", posText(want.EstimatedGoal), posText(got.EstimatedGoal))
	check("danger_zones", want.DangerZones, got.DangerZones)
	check("unexplored", want.Unexplored, got.Unexplored)
	for _, k := range sortedKeys(want.ILActions) {
		check("il_actions["+k+"]", want.ILActions[k], got.ILActions[k])
	}
	for _, k := range sortedKeys(want.BestActions) {
		check("best_actions["+k+"]", want.BestActions[k], got.BestActions[k])
	}
	if want.Weights != nil && got.Weights != nil {
		check("decision_weights", *want.Weights, *got.Weights)
	}
	return out
}

func posText(p *trajectory.Position) string {
	if p == nil {
		return "unknown"
	}
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion fixture-run

// #region fixture-export

// NewFixture captures episodes and the outputs of training on them, for use
// as a regression baseline.
func NewFixture(description string, fc FixtureConfig, episodes [][]trajectory.Step) (*Fixture, error) {
	f := &Fixture{Description: description, Config: fc}
	for i, ep := range episodes {
		id := fmt.Sprintf("ep%03d", i+1)
		if len(ep) > 0 && ep[0].Episode != "" {
			id = ep[0].Episode
		}
		fe := FixtureEpisode{ID: id, Rows: make([][9]float64, len(ep))}
		for j, s := range ep {
			fe.Rows[j] = [9]float64{
				float64(s.Pos.X), float64(s.Pos.Y), float64(s.Env),
				float64(s.Up), float64(s.Down), float64(s.Right), float64(s.Left),
				float64(s.Action), s.Reward,
			}
		}
		f.Episodes = append(f.Episodes, fe)
	}

	cfg := fc.ToConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fixture config: %w", err)
	}
	exp, err := f.Experience(cfg)
	if err != nil {
		return nil, err
	}
	res, err := Train(context.Background(), exp, cfg, qlearn.NewRand(cfg.QLearn.Seed), time.Unix(0, 0).UTC(), nil)
	if err != nil {
		return nil, err
	}
	f.Expected = Observe(exp, res)
	return f, nil
}

// #endregion fixture-export
