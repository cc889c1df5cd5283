package qlearn

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// ErrEmptyExperience is returned when there is nothing to train on.
var ErrEmptyExperience = errors.New("experience store is empty")

// #region train-config
// Config holds the hyperparameters of the tabular trainer.
type Config struct {
	Epochs         int     // full passes over the experience (default 20)
	Gamma          float64 // discount factor (default 0.9)
	Alpha          float64 // EMA learning rate (default 0.1)
	ImitationBonus float64 // added to the target when the advisor agrees (0 = disabled)
	Seed           int64   // shuffle seed; 0 seeds from the clock
}

// DefaultConfig returns the trainer defaults with the imitation bonus disabled.
func DefaultConfig() Config {
	return Config{
		Epochs: 20,
		Gamma:  0.9,
		Alpha:  0.1,
	}
}

// Validate rejects hyperparameters outside their usable ranges.
func (c Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("epochs must be at least 1, got %d", c.Epochs)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be in [0, 1], got %.4f", c.Gamma)
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0, 1], got %.4f", c.Alpha)
	}
	return nil
}

// #endregion train-config

// #region table
// Row holds one value per ActionId. Index 0 is never written.
type Row [5]float64

// Max returns the highest value over the four valid actions.
func (r *Row) Max() float64 {
	m := r[trajectory.ActionUp]
	for _, a := range trajectory.Actions[1:] {
		if r[a] > m {
			m = r[a]
		}
	}
	return m
}

// Best returns the action with the highest value; ties go to the lowest ActionId.
func (r *Row) Best() trajectory.Action {
	best := trajectory.ActionUp
	for _, a := range trajectory.Actions[1:] {
		if r[a] > r[best] {
			best = a
		}
	}
	return best
}

// Table is the sparse action-value table keyed by full state key.
type Table map[trajectory.FullKey]*Row

// row returns the row for k, materializing a zero row on first reference.
func (t Table) row(k trajectory.FullKey) *Row {
	r, ok := t[k]
	if !ok {
		r = new(Row)
		t[k] = r
	}
	return r
}

// Encode renders the table with engine key text.
func (t Table) Encode() map[string][5]float64 {
	out := make(map[string][5]float64, len(t))
	for k, r := range t {
		out[k.String()] = *r
	}
	return out
}

// Decode rebuilds a table from its exported form.
func Decode(m map[string][5]float64) (Table, error) {
	t := make(Table, len(m))
	for text, vals := range m {
		k, err := trajectory.ParseFullKey(text)
		if err != nil {
			return nil, fmt.Errorf("decode q table: %w", err)
		}
		r := Row(vals)
		r[0] = 0
		t[k] = &r
	}
	return t, nil
}

// #endregion table

// #region advisor
// Advisor supplies the demonstrated action for a step. The imitation policy
// implements it in whichever key space it was built with.
type Advisor interface {
	Suggest(s trajectory.Step) (trajectory.Action, bool)
}

// #endregion advisor

// #region metrics
// EpochMetric captures the size of the updates made in one epoch.
type EpochMetric struct {
	Epoch     int     `json:"epoch"`
	MeanDelta float64 `json:"mean_delta"` // mean |ΔQ| over the epoch's updates
	MaxDelta  float64 `json:"max_delta"`
	Rows      int     `json:"rows"` // table rows after the epoch
	Bonuses   int     `json:"bonuses"`
}

// Result bundles everything returned by Train.
type Result struct {
	Table     Table
	Epochs    []EpochMetric
	Updates   int // updates per epoch
	Skipped   int // transitions excluded for an invalid action
	ElapsedMs int64
}

// #endregion metrics
