package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region eval-harness
// EvalHarness checks an artifact bundle against the engine's expectations
// before it is exported or after it is loaded.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run validates b and returns pass/fail with per-check metrics.
func (h *EvalHarness) Run(b *artifact.Bundle) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Q rows: parseable key, index 0 untouched, finite values
	badKeys, badRows := 0, 0
	maxAbs := 0.0
	for key, row := range b.QTable {
		if _, err := trajectory.ParseFullKey(key); err != nil {
			badKeys++
		}
		if row[0] != 0 {
			badRows++
		}
		for _, v := range row[1:] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				badRows++
				break
			}
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
	}
	check("q_key_format", float64(badKeys), badKeys == 0, fmt.Sprintf("%d q table keys malformed", badKeys))
	check("q_row_shape", float64(badRows), badRows == 0, fmt.Sprintf("%d q table rows malformed", badRows))
	if h.config.MaxAbsQ > 0 {
		check("q_max_abs", maxAbs, maxAbs <= h.config.MaxAbsQ, fmt.Sprintf("q value %.4f exceeds %.4f", maxAbs, h.config.MaxAbsQ))
	}

	// 2. Imitation actions in range
	badActions := 0
	for _, a := range b.ILPolicy {
		if !trajectory.Action(a).Valid() {
			badActions++
		}
	}
	check("il_action_range", float64(badActions), badActions == 0, fmt.Sprintf("%d imitation actions out of range", badActions))

	// 3. Behavior-cloning rows sum to one
	worst := 0.0
	empty := 0
	for _, d := range b.BCPolicy {
		if d.Samples == 0 {
			empty++
			continue
		}
		worst = math.Max(worst, math.Abs(d.Sum()-1))
	}
	check("bc_prob_sum", worst, worst <= h.config.ProbTolerance, fmt.Sprintf("bc probabilities deviate by %.4f", worst))
	check("bc_zero_samples", float64(empty), empty == 0, fmt.Sprintf("%d bc rows without samples", empty))

	// 4. Knowledge bounds
	dz := len(b.Model.DangerZones)
	check("danger_zones", float64(dz), dz <= h.config.MaxDangerZones, fmt.Sprintf("%d danger zones exceed %d", dz, h.config.MaxDangerZones))

	w := b.Model.DecisionWeights
	inRange := w.HoleFearIndex >= -5 && w.HoleFearIndex <= 0 &&
		w.TrapInterest >= -1 && w.TrapInterest <= 1 &&
		w.GoalBias >= 0 && w.GoalBias <= 1 &&
		w.GoalApproachRate >= 0 && w.GoalApproachRate <= 1
	check("weights_range", w.HoleFearIndex, inRange, "decision weights out of range")

	passed := len(failReasons) == 0
	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
