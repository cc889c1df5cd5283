package cloning

import (
	"fmt"
	"math"
	"strconv"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region format
// Format selects how a behavior-cloning table is written.
type Format string

const (
	// FormatProbabilities writes {up,right,down,left,samples}.
	FormatProbabilities Format = "probabilities"
	// FormatCounts writes raw counts keyed "1".."4".
	FormatCounts Format = "counts"
)

// KeySpace names the state encoding a table is keyed by.
type KeySpace string

const (
	KeySpaceSurroundings KeySpace = "surroundings"
	KeySpaceEnvironment  KeySpace = "environment"
)

// #endregion format

// #region distribution
// Distribution is the per-action probability of one state, rounded to four
// decimals, plus the number of samples behind it.
type Distribution struct {
	Up      float64 `json:"up"`
	Right   float64 `json:"right"`
	Down    float64 `json:"down"`
	Left    float64 `json:"left"`
	Samples int     `json:"samples"`
}

// Prob returns the probability of a.
func (d Distribution) Prob(a trajectory.Action) float64 {
	switch a {
	case trajectory.ActionUp:
		return d.Up
	case trajectory.ActionRight:
		return d.Right
	case trajectory.ActionDown:
		return d.Down
	case trajectory.ActionLeft:
		return d.Left
	}
	return 0
}

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	return d.Up + d.Right + d.Down + d.Left
}

// Best returns the most probable action; ties go to the lowest ActionId.
func (d Distribution) Best() trajectory.Action {
	best := trajectory.ActionUp
	for _, a := range trajectory.Actions[1:] {
		if d.Prob(a) > d.Prob(best) {
			best = a
		}
	}
	return best
}

// Counts holds one tally per ActionId. Index 0 stays zero.
type Counts [5]int

// Total returns the number of samples.
func (c Counts) Total() int {
	return c[1] + c[2] + c[3] + c[4]
}

// Distribution normalizes c. The zero value is returned for an empty tally.
func (c Counts) Distribution() Distribution {
	total := c.Total()
	if total == 0 {
		return Distribution{}
	}
	p := func(a trajectory.Action) float64 {
		return round(float64(c[a])/float64(total), 4)
	}
	return Distribution{
		Up:      p(trajectory.ActionUp),
		Right:   p(trajectory.ActionRight),
		Down:    p(trajectory.ActionDown),
		Left:    p(trajectory.ActionLeft),
		Samples: total,
	}
}

// CountsFromMap parses the counts format back into a tally.
func CountsFromMap(m map[string]int) (Counts, error) {
	var c Counts
	for k, v := range m {
		a, err := strconv.Atoi(k)
		if err != nil || !trajectory.Action(a).Valid() {
			return c, fmt.Errorf("invalid action key %q", k)
		}
		c[a] = v
	}
	return c, nil
}

func (c Counts) toMap() map[string]int {
	return map[string]int{"1": c[1], "2": c[2], "3": c[3], "4": c[4]}
}

// #endregion distribution

// #region table
// Table counts demonstrated actions per state key. Keys whose every sample
// carried an invalid action never enter the table.
type Table[K trajectory.Key] struct {
	Counts  map[K]*Counts
	Skipped int
}

// Build tallies every valid action in trs under keyOf.
func Build[K trajectory.Key](trs []trajectory.Transition, keyOf func(trajectory.Step) K) *Table[K] {
	t := &Table[K]{Counts: make(map[K]*Counts)}
	for _, tr := range trs {
		if !tr.Action.Valid() {
			t.Skipped++
			continue
		}
		k := keyOf(tr.Step)
		c, ok := t.Counts[k]
		if !ok {
			c = new(Counts)
			t.Counts[k] = c
		}
		c[tr.Action]++
	}
	return t
}

// Len returns the number of keys.
func (t *Table[K]) Len() int {
	return len(t.Counts)
}

// Samples returns the number of tallied actions.
func (t *Table[K]) Samples() int {
	n := 0
	for _, c := range t.Counts {
		n += c.Total()
	}
	return n
}

// Distributions renders the probability format with text keys.
func (t *Table[K]) Distributions() map[string]Distribution {
	out := make(map[string]Distribution, len(t.Counts))
	for k, c := range t.Counts {
		if c.Total() == 0 {
			continue
		}
		out[k.String()] = c.Distribution()
	}
	return out
}

// CountMaps renders the counts format with text keys.
func (t *Table[K]) CountMaps() map[string]map[string]int {
	out := make(map[string]map[string]int, len(t.Counts))
	for k, c := range t.Counts {
		if c.Total() == 0 {
			continue
		}
		out[k.String()] = c.toMap()
	}
	return out
}

// Encode renders the table in format f.
func (t *Table[K]) Encode(f Format) any {
	if f == FormatCounts {
		return t.CountMaps()
	}
	return t.Distributions()
}

// #endregion table

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}
