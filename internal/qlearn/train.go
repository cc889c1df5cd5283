package qlearn

import (
	"math"
	"math/rand"
	"time"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// NewRand returns the shuffle source for seed. Seed 0 seeds from the clock.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// #region train
// Train builds the action-value table from every transition in exp.
// Each epoch visits the transitions in a fresh random order drawn from rng
// (or from cfg.Seed when rng is nil) and applies
//
//	Q[s][a] = (1-α)·Q[s][a] + α·(r + bonus + γ·max Q[s'])
//
// where bonus is cfg.ImitationBonus when advisor suggests a for s.
// Next states are materialized as zero rows on first reference.
func Train(exp *trajectory.Experience, advisor Advisor, cfg Config, rng *rand.Rand) (Result, error) {
	start := time.Now()
	if exp == nil || exp.Len() == 0 {
		return Result{}, ErrEmptyExperience
	}
	if rng == nil {
		rng = NewRand(cfg.Seed)
	}

	order := make([]int, 0, exp.Len())
	skipped := 0
	for i, tr := range exp.Transitions {
		if !tr.Action.Valid() {
			skipped++
			continue
		}
		order = append(order, i)
	}
	if len(order) == 0 {
		return Result{Skipped: skipped}, ErrEmptyExperience
	}

	useBonus := advisor != nil && cfg.ImitationBonus != 0
	table := make(Table)
	metrics := make([]EpochMetric, 0, cfg.Epochs)

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sumDelta, maxDelta float64
		bonuses := 0
		for _, idx := range order {
			tr := &exp.Transitions[idx]
			row := table.row(tr.State)

			nextMax := 0.0
			if !tr.Terminal && tr.Next != nil {
				nextMax = table.row(*tr.Next).Max()
			}

			bonus := 0.0
			if useBonus {
				if a, ok := advisor.Suggest(tr.Step); ok && a == tr.Action {
					bonus = cfg.ImitationBonus
					bonuses++
				}
			}

			target := tr.Reward + bonus + cfg.Gamma*nextMax
			old := row[tr.Action]
			row[tr.Action] = (1-cfg.Alpha)*old + cfg.Alpha*target

			d := math.Abs(row[tr.Action] - old)
			sumDelta += d
			if d > maxDelta {
				maxDelta = d
			}
		}

		metrics = append(metrics, EpochMetric{
			Epoch:     epoch,
			MeanDelta: sumDelta / float64(len(order)),
			MaxDelta:  maxDelta,
			Rows:      len(table),
			Bonuses:   bonuses,
		})
	}

	return Result{
		Table:     table,
		Epochs:    metrics,
		Updates:   len(order),
		Skipped:   skipped,
		ElapsedMs: time.Since(start).Milliseconds(),
	}, nil
}

// #endregion train
