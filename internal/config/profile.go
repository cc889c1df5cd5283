package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/cloning"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/imitation"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/pipeline"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// Profile is a training profile as stored in YAML. Fields missing from the
// file keep their DefaultProfile value.
type Profile struct {
	Terminal  TerminalProfile  `yaml:"terminal"`
	QLearn    QLearnProfile    `yaml:"qlearn"`
	Imitation ImitationProfile `yaml:"imitation"`
	Cloning   CloningProfile   `yaml:"cloning"`
	Knowledge KnowledgeProfile `yaml:"knowledge"`
	Eval      EvalProfile      `yaml:"eval"`
}

// TerminalProfile selects the terminal rule and reward thresholds.
type TerminalProfile struct {
	Rule          string  `yaml:"rule"`
	GoalReward    float64 `yaml:"goal_reward"`
	FallReward    float64 `yaml:"fall_reward"`
	NeutralReward float64 `yaml:"neutral_reward"`
}

// QLearnProfile holds the tabular trainer hyperparameters.
type QLearnProfile struct {
	Epochs         int     `yaml:"epochs"`
	Gamma          float64 `yaml:"gamma"`
	Alpha          float64 `yaml:"alpha"`
	ImitationBonus float64 `yaml:"imitation_bonus"`
	Seed           int64   `yaml:"seed"`
}

// ImitationProfile selects the imitation policy key space.
type ImitationProfile struct {
	KeySpace string `yaml:"key_space"`
}

// CloningProfile selects the behavior-cloning key space and output format.
type CloningProfile struct {
	KeySpace string `yaml:"key_space"`
	Format   string `yaml:"format"`
}

// KnowledgeProfile bounds the knowledge extraction.
type KnowledgeProfile struct {
	DangerTopK int `yaml:"danger_top_k"`
}

// EvalProfile sets the validation tolerances and whether a failed check blocks export.
type EvalProfile struct {
	ProbTolerance float64 `yaml:"prob_tolerance"`
	MaxAbsQ       float64 `yaml:"max_abs_q"`
	FailOnEval    bool    `yaml:"fail_on_eval"`
}

// DefaultProfile mirrors pipeline.DefaultConfig.
func DefaultProfile() Profile {
	d := pipeline.DefaultConfig()
	return Profile{
		Terminal: TerminalProfile{
			Rule:          string(d.Terminal.Rule),
			GoalReward:    d.Terminal.GoalReward,
			FallReward:    d.Terminal.FallReward,
			NeutralReward: d.Terminal.NeutralReward,
		},
		QLearn: QLearnProfile{
			Epochs:         d.QLearn.Epochs,
			Gamma:          d.QLearn.Gamma,
			Alpha:          d.QLearn.Alpha,
			ImitationBonus: d.QLearn.ImitationBonus,
			Seed:           d.QLearn.Seed,
		},
		Imitation: ImitationProfile{KeySpace: string(d.ILKeySpace)},
		Cloning:   CloningProfile{KeySpace: string(d.BCKeySpace), Format: string(d.BCFormat)},
		Knowledge: KnowledgeProfile{DangerTopK: d.Knowledge.DangerTopK},
		Eval: EvalProfile{
			ProbTolerance: d.Eval.ProbTolerance,
			MaxAbsQ:       d.Eval.MaxAbsQ,
			FailOnEval:    d.FailOnEval,
		},
	}
}

// LoadProfile reads a profile file over DefaultProfile and validates it.
// An empty path returns the defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects settings the pipeline cannot run with.
func (p Profile) Validate() error {
	if p.Eval.ProbTolerance <= 0 {
		return fmt.Errorf("eval.prob_tolerance must be positive, got %g", p.Eval.ProbTolerance)
	}
	if p.Eval.MaxAbsQ < 0 {
		return fmt.Errorf("eval.max_abs_q must not be negative, got %g", p.Eval.MaxAbsQ)
	}
	return p.PipelineConfig(&Config{}).Validate()
}

// PipelineConfig combines the profile with the operator paths.
func (p Profile) PipelineConfig(op *Config) pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Logs = op.LogConfig()
	cfg.ExportDir = op.ExportDir
	cfg.Terminal = trajectory.TerminalConfig{
		Rule:          trajectory.TerminalRule(p.Terminal.Rule),
		GoalReward:    p.Terminal.GoalReward,
		FallReward:    p.Terminal.FallReward,
		NeutralReward: p.Terminal.NeutralReward,
	}
	cfg.QLearn.Epochs = p.QLearn.Epochs
	cfg.QLearn.Gamma = p.QLearn.Gamma
	cfg.QLearn.Alpha = p.QLearn.Alpha
	cfg.QLearn.ImitationBonus = p.QLearn.ImitationBonus
	cfg.QLearn.Seed = p.QLearn.Seed
	cfg.ILKeySpace = imitation.KeySpace(p.Imitation.KeySpace)
	cfg.BCKeySpace = cloning.KeySpace(p.Cloning.KeySpace)
	cfg.BCFormat = cloning.Format(p.Cloning.Format)
	cfg.Knowledge.DangerTopK = p.Knowledge.DangerTopK
	cfg.Eval.ProbTolerance = p.Eval.ProbTolerance
	cfg.Eval.MaxAbsQ = p.Eval.MaxAbsQ
	cfg.Eval.MaxDangerZones = max(cfg.Eval.MaxDangerZones, p.Knowledge.DangerTopK)
	cfg.FailOnEval = p.Eval.FailOnEval
	return cfg
}

// YAML renders the profile as it would be stored on disk.
func (p Profile) YAML() ([]byte, error) {
	out, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	return out, nil
}

// FixtureConfig carries the profile's training settings into a regression
// fixture.
func (p Profile) FixtureConfig() pipeline.FixtureConfig {
	goal, fall, neutral := p.Terminal.GoalReward, p.Terminal.FallReward, p.Terminal.NeutralReward
	return pipeline.FixtureConfig{
		Seed:           p.QLearn.Seed,
		Epochs:         p.QLearn.Epochs,
		Gamma:          p.QLearn.Gamma,
		Alpha:          p.QLearn.Alpha,
		ImitationBonus: p.QLearn.ImitationBonus,
		TerminalRule:   p.Terminal.Rule,
		GoalReward:     &goal,
		FallReward:     &fall,
		NeutralReward:  &neutral,
		ILKeySpace:     p.Imitation.KeySpace,
		BCKeySpace:     p.Cloning.KeySpace,
		BCFormat:       p.Cloning.Format,
		DangerTopK:     p.Knowledge.DangerTopK,
	}
}
