package trajectory

import "fmt"

// #region terminal-config

// TerminalRule selects how non-final rows are classified as terminal.
type TerminalRule string

const (
	// RuleThreshold ends an episode on goal or fall rewards.
	RuleThreshold TerminalRule = "threshold"
	// RuleNeutralStep ends an episode on any reward other than the step sentinel.
	RuleNeutralStep TerminalRule = "neutral-step"
)

// TerminalConfig holds the reward thresholds used for terminal classification
// and for flagging goal-like and fall-like positions.
type TerminalConfig struct {
	Rule          TerminalRule
	GoalReward    float64 // reward >= this marks a goal
	FallReward    float64 // reward <= this marks a fall
	NeutralReward float64 // per-step reward under RuleNeutralStep
}

// DefaultTerminalConfig returns the threshold rule with the level defaults.
func DefaultTerminalConfig() TerminalConfig {
	return TerminalConfig{
		Rule:          RuleThreshold,
		GoalReward:    500,
		FallReward:    -100,
		NeutralReward: -1,
	}
}

// Validate rejects unknown rules and inverted thresholds.
func (c TerminalConfig) Validate() error {
	switch c.Rule {
	case RuleThreshold, RuleNeutralStep:
	default:
		return fmt.Errorf("unknown terminal rule %q", c.Rule)
	}
	if c.FallReward >= c.GoalReward {
		return fmt.Errorf("fall reward %.2f must be below goal reward %.2f", c.FallReward, c.GoalReward)
	}
	return nil
}

func (c TerminalConfig) isGoal(s Step) bool {
	return s.Reward >= c.GoalReward || s.Env == TileGoal
}

func (c TerminalConfig) isFall(s Step) bool {
	return s.Reward <= c.FallReward || s.Env == TileHole
}

func (c TerminalConfig) terminal(s Step, last bool) bool {
	if last {
		return true
	}
	if c.Rule == RuleNeutralStep {
		return s.Reward != c.NeutralReward
	}
	return s.Reward >= c.GoalReward || s.Reward <= c.FallReward
}

// #endregion terminal-config

// #region build-episode

// BuildEpisode converts one episode's ordered steps into transitions.
// The final step is always terminal; next states never cross episodes.
func BuildEpisode(steps []Step, cfg TerminalConfig) []Transition {
	out := make([]Transition, len(steps))
	for i, s := range steps {
		last := i == len(steps)-1
		tr := Transition{
			Step:     s,
			State:    FullKeyOf(s),
			Action:   s.Action,
			Reward:   s.Reward,
			Terminal: cfg.terminal(s, last),
		}
		if !tr.Terminal {
			next := FullKeyOf(steps[i+1])
			tr.Next = &next
		}
		out[i] = tr
	}
	return out
}

// #endregion build-episode

// #region experience

// Experience holds every transition of a training run together with the
// position statistics gathered while the transitions were built. All episodes
// stay resident; corpora beyond a few million rows need streaming aggregation.
type Experience struct {
	Transitions    []Transition
	Visited        map[Position]struct{}
	GoalHits       []Position // in encounter order
	FallHits       []Position // in encounter order
	Episodes       int
	InvalidActions int

	terminal TerminalConfig
}

// NewExperience creates an empty store using cfg for classification.
func NewExperience(cfg TerminalConfig) *Experience {
	return &Experience{
		Visited:  make(map[Position]struct{}),
		terminal: cfg,
	}
}

// TerminalConfig returns the classification settings of the store.
func (e *Experience) TerminalConfig() TerminalConfig {
	return e.terminal
}

// AddEpisode builds and appends one episode. Empty episodes are ignored.
// Returns the number of transitions added.
func (e *Experience) AddEpisode(steps []Step) int {
	if len(steps) == 0 {
		return 0
	}
	trs := BuildEpisode(steps, e.terminal)
	for _, tr := range trs {
		s := tr.Step
		e.Visited[s.Pos] = struct{}{}
		if e.terminal.isGoal(s) {
			e.GoalHits = append(e.GoalHits, s.Pos)
		}
		if e.terminal.isFall(s) {
			e.FallHits = append(e.FallHits, s.Pos)
		}
		if !s.Action.Valid() {
			e.InvalidActions++
		}
	}
	e.Transitions = append(e.Transitions, trs...)
	e.Episodes++
	return len(trs)
}

// Len returns the number of transitions held.
func (e *Experience) Len() int {
	return len(e.Transitions)
}

// TerminalCount returns how many transitions are terminal.
func (e *Experience) TerminalCount() int {
	n := 0
	for _, tr := range e.Transitions {
		if tr.Terminal {
			n++
		}
	}
	return n
}

// #endregion experience
