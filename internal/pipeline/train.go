package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/cloning"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/eval"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/imitation"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/knowledge"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/logging"
	demootel "github.com/danielpatrickdp/demoai/go-trainer/internal/otel"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/qlearn"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

var tracer = demootel.Tracer("github.com/danielpatrickdp/demoai/go-trainer/internal/pipeline")

// #region types

// StageReport is emitted after each stage completes.
type StageReport struct {
	Stage    string
	Outcome  string
	Counts   map[string]int
	Detail   string
	Duration time.Duration
}

// Observer receives stage reports in execution order. May be nil.
type Observer func(StageReport)

// Result holds every in-memory output of a training run.
type Result struct {
	Bundle    *artifact.Bundle
	QLearn    qlearn.Result
	Knowledge knowledge.Knowledge
	Eval      eval.EvalResult
	ILStates  int
	BCStates  int
}

// #endregion types

// #region train

// Train runs every stage after loading: imitation, Q-learning, behavior
// cloning, knowledge extraction and validation. Nothing is written to disk.
func Train(ctx context.Context, exp *trajectory.Experience, cfg Config, rng *rand.Rand, now time.Time, observe Observer) (*Result, error) {
	if exp == nil || exp.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if observe == nil {
		observe = func(StageReport) {}
	}
	res := &Result{}
	trs := exp.Transitions

	// 1. Imitation
	var advisor qlearn.Advisor
	var ilPolicy map[string]int
	runStage(ctx, logging.StageImitation, observe, func() (map[string]int, string) {
		var skipped, samples int
		switch cfg.ILKeySpace {
		case imitation.KeySpaceEnvironment:
			p := imitation.BuildEnv(trs)
			advisor, ilPolicy, res.ILStates = p, p.Encode(), p.Len()
			skipped, samples = p.Skipped, p.Samples
		default:
			p := imitation.BuildFull(trs)
			advisor, ilPolicy, res.ILStates = p, p.Encode(), p.Len()
			skipped, samples = p.Skipped, p.Samples
		}
		return map[string]int{"states": res.ILStates, "samples": samples, "skipped": skipped}, string(cfg.ILKeySpace)
	})
	if cfg.QLearn.ImitationBonus == 0 {
		advisor = nil
	}

	// 2. Q-learning
	var trainErr error
	runStage(ctx, logging.StageTrain, observe, func() (map[string]int, string) {
		res.QLearn, trainErr = qlearn.Train(exp, advisor, cfg.QLearn, rng)
		if trainErr != nil {
			return nil, trainErr.Error()
		}
		return map[string]int{
			"rows":    len(res.QLearn.Table),
			"epochs":  len(res.QLearn.Epochs),
			"updates": res.QLearn.Updates,
			"skipped": res.QLearn.Skipped,
		}, ""
	})
	if trainErr != nil {
		return nil, fmt.Errorf("train q-table: %w", trainErr)
	}

	// 3. Behavior cloning and reward statistics
	var bcPolicy map[string]cloning.Distribution
	var bcCounts map[string]map[string]int
	var gradient map[string]cloning.RewardStats
	var goals map[string]int
	runStage(ctx, logging.StageCloning, observe, func() (map[string]int, string) {
		var samples int
		switch cfg.BCKeySpace {
		case cloning.KeySpaceEnvironment:
			t := cloning.Build(trs, trajectory.EnvKeyOf)
			bcPolicy, res.BCStates, samples = t.Distributions(), t.Len(), t.Samples()
			if cfg.BCFormat == cloning.FormatCounts {
				bcCounts = t.CountMaps()
			}
		default:
			t := cloning.Build(trs, trajectory.SurroundKeyOf)
			bcPolicy, res.BCStates, samples = t.Distributions(), t.Len(), t.Samples()
			if cfg.BCFormat == cloning.FormatCounts {
				bcCounts = t.CountMaps()
			}
		}
		gradient = cloning.EncodeGradient(cloning.RewardGradient(trs))
		goals = cloning.EncodeGoalPositions(cloning.GoalPositions(trs, cfg.Terminal.GoalReward))
		return map[string]int{
			"states":         res.BCStates,
			"samples":        samples,
			"gradient_keys":  len(gradient),
			"goal_positions": len(goals),
		}, fmt.Sprintf("%s/%s", cfg.BCKeySpace, cfg.BCFormat)
	})

	// 4. Knowledge
	var weights knowledge.DecisionWeights
	var scores knowledge.Scores
	runStage(ctx, logging.StageKnowledge, observe, func() (map[string]int, string) {
		res.Knowledge = knowledge.Extract(exp, cfg.Knowledge)
		weights = knowledge.Weights(exp, res.Knowledge)
		scores = knowledge.DirectionScores(exp)
		goalKnown := 0
		if res.Knowledge.GoalKnown() {
			goalKnown = 1
		}
		return map[string]int{
			"goal_known":   goalKnown,
			"danger_zones": len(res.Knowledge.Danger),
			"unexplored":   len(res.Knowledge.Unexplored),
		}, ""
	})

	var bcModel any = bcPolicy
	if cfg.BCFormat == cloning.FormatCounts {
		bcModel = bcCounts
	}
	res.Bundle = &artifact.Bundle{
		QTable:         res.QLearn.Table.Encode(),
		ILPolicy:       ilPolicy,
		BCFormat:       cfg.BCFormat,
		BCPolicy:       bcPolicy,
		BCCounts:       bcCounts,
		RewardGradient: gradient,
		GoalPositions:  goals,
		Model:          artifact.NewModelData(res.Knowledge, bcModel, weights, scores, now),
		Parameters:     artifact.NewParameters(res.Knowledge, weights, res.BCStates),
	}

	// 5. Validation
	evalCfg := cfg.Eval
	if evalCfg.MaxDangerZones < cfg.Knowledge.DangerTopK {
		evalCfg.MaxDangerZones = cfg.Knowledge.DangerTopK
	}
	runStage(ctx, logging.StageEval, observe, func() (map[string]int, string) {
		res.Eval = eval.NewEvalHarness(evalCfg).Run(res.Bundle)
		failed := 0
		for _, m := range res.Eval.Metrics {
			if !m.Pass {
				failed++
			}
		}
		return map[string]int{"checks": len(res.Eval.Metrics), "failed": failed}, res.Eval.Reason
	})

	return res, nil
}

// runStage times fn inside a span and reports its outcome. A stage whose
// detail is non-empty and whose counts are nil is reported as failed.
func runStage(ctx context.Context, stage string, observe Observer, fn func() (map[string]int, string)) {
	_, span := tracer.Start(ctx, "pipeline."+stage)
	defer span.End()

	start := time.Now()
	counts, detail := fn()
	outcome := logging.OutcomeOK
	switch {
	case counts == nil && detail != "":
		outcome = logging.OutcomeFailed
		span.SetStatus(codes.Error, detail)
	case counts["skipped"] > 0 || counts["failed"] > 0:
		outcome = logging.OutcomeWarn
	}
	for k, v := range counts {
		span.SetAttributes(attribute.Int(stage+"."+k, v))
	}
	observe(StageReport{
		Stage:    stage,
		Outcome:  outcome,
		Counts:   counts,
		Detail:   detail,
		Duration: time.Since(start),
	})
}

// #endregion train
