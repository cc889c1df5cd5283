package imitation

import (
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region key-space
// KeySpace names the state encoding an imitation policy is keyed by.
type KeySpace string

const (
	KeySpaceFull        KeySpace = "full"
	KeySpaceEnvironment KeySpace = "environment"
)

// #endregion key-space

// #region policy
// Policy maps each observed state key to the action demonstrated most often
// from it. Ties go to the lowest ActionId.
type Policy[K trajectory.Key] struct {
	Actions map[K]trajectory.Action
	Samples int // transitions counted
	Skipped int // transitions with an invalid action

	keyOf func(trajectory.Step) K
}

// Build counts every valid action per key and keeps the majority action.
// Building twice from the same transitions yields the same mapping.
func Build[K trajectory.Key](trs []trajectory.Transition, keyOf func(trajectory.Step) K) *Policy[K] {
	counts := make(map[K]*[5]int)
	p := &Policy[K]{keyOf: keyOf}
	for _, tr := range trs {
		if !tr.Action.Valid() {
			p.Skipped++
			continue
		}
		k := keyOf(tr.Step)
		c, ok := counts[k]
		if !ok {
			c = new([5]int)
			counts[k] = c
		}
		c[tr.Action]++
		p.Samples++
	}

	p.Actions = make(map[K]trajectory.Action, len(counts))
	for k, c := range counts {
		p.Actions[k] = majority(c)
	}
	return p
}

// BuildFull keys the policy by the position-dependent key the engine looks up.
func BuildFull(trs []trajectory.Transition) *Policy[trajectory.FullKey] {
	return Build(trs, trajectory.FullKeyOf)
}

// BuildEnv keys the policy by local surroundings only.
func BuildEnv(trs []trajectory.Transition) *Policy[trajectory.EnvKey] {
	return Build(trs, trajectory.EnvKeyOf)
}

func majority(c *[5]int) trajectory.Action {
	best := trajectory.ActionNone
	bestN := 0
	for _, a := range trajectory.Actions {
		if c[a] > bestN {
			best, bestN = a, c[a]
		}
	}
	return best
}

// #endregion policy

// #region lookup
// Lookup returns the majority action for k.
func (p *Policy[K]) Lookup(k K) (trajectory.Action, bool) {
	a, ok := p.Actions[k]
	return a, ok
}

// Suggest encodes s in the policy's key space and returns its majority action.
func (p *Policy[K]) Suggest(s trajectory.Step) (trajectory.Action, bool) {
	if p.keyOf == nil {
		return trajectory.ActionNone, false
	}
	return p.Lookup(p.keyOf(s))
}

// Len returns the number of keys in the policy.
func (p *Policy[K]) Len() int {
	return len(p.Actions)
}

// Encode renders the policy with text keys for export.
func (p *Policy[K]) Encode() map[string]int {
	out := make(map[string]int, len(p.Actions))
	for k, a := range p.Actions {
		out[k.String()] = int(a)
	}
	return out
}

// #endregion lookup
