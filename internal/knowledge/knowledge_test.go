package knowledge

import (
	"testing"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

func pos(x, y int) trajectory.Position {
	return trajectory.Position{X: x, Y: y}
}

func row(x, y int, env trajectory.Tile, a trajectory.Action, r float64) trajectory.Step {
	return trajectory.Step{
		Pos: pos(x, y), Env: env,
		Up: trajectory.TileFlat, Down: trajectory.TileFlat, Right: trajectory.TileFlat, Left: trajectory.TileFlat,
		Action: a, Reward: r,
	}
}

func store(episodes ...[]trajectory.Step) *trajectory.Experience {
	exp := trajectory.NewExperience(trajectory.DefaultTerminalConfig())
	for _, ep := range episodes {
		exp.AddEpisode(ep)
	}
	return exp
}

// #region extract-tests

func TestExtract_ScenarioGoal(t *testing.T) {
	exp := store([]trajectory.Step{
		row(0, 0, trajectory.TileFlat, trajectory.ActionRight, 0),
		row(1, 0, trajectory.TileGoal, trajectory.ActionRight, 1000),
	})
	k := Extract(exp, DefaultConfig())
	if !k.GoalKnown() || *k.Goal != pos(1, 0) {
		t.Fatalf("expected goal (1,0), got %v", k.Goal)
	}
	if len(k.Unexplored) != 0 {
		t.Fatalf("expected no unexplored cells, got %v", k.Unexplored)
	}
}

func TestExtract_GoalTieFirstSeenWins(t *testing.T) {
	exp := store(
		[]trajectory.Step{row(4, 4, trajectory.TileGoal, trajectory.ActionUp, 600)},
		[]trajectory.Step{row(2, 2, trajectory.TileGoal, trajectory.ActionUp, 600)},
		[]trajectory.Step{row(2, 2, trajectory.TileGoal, trajectory.ActionUp, 600)},
		[]trajectory.Step{row(4, 4, trajectory.TileGoal, trajectory.ActionUp, 600)},
	)
	k := Extract(exp, DefaultConfig())
	if *k.Goal != pos(4, 4) || k.GoalHits != 2 {
		t.Fatalf("expected (4,4) with 2 hits, got %v/%d", k.Goal, k.GoalHits)
	}
}

func TestExtract_NoGoal(t *testing.T) {
	exp := store([]trajectory.Step{row(0, 0, trajectory.TileFlat, trajectory.ActionUp, -1)})
	k := Extract(exp, DefaultConfig())
	if k.GoalKnown() {
		t.Fatalf("expected unknown goal, got %v", *k.Goal)
	}
}

func TestExtract_DangerRankingTopK(t *testing.T) {
	var steps []trajectory.Step
	// (5,0) x1, (6,0) x3, (7,0) x3, (8,0) x2
	for _, p := range []trajectory.Position{pos(5, 0), pos(6, 0), pos(7, 0), pos(6, 0), pos(8, 0), pos(7, 0), pos(6, 0), pos(7, 0), pos(8, 0)} {
		steps = append(steps, row(p.X, p.Y, trajectory.TileHole, trajectory.ActionUp, -200))
	}
	exp := store(steps)

	k := Extract(exp, Config{DangerTopK: 3})
	want := []trajectory.Position{pos(6, 0), pos(7, 0), pos(8, 0)}
	if len(k.Danger) != len(want) {
		t.Fatalf("expected %d danger zones, got %v", len(want), k.Danger)
	}
	for i := range want {
		if k.Danger[i] != want[i] {
			t.Fatalf("danger[%d]: expected %v, got %v", i, want[i], k.Danger[i])
		}
	}
	if k.DangerSeen != 4 {
		t.Fatalf("expected 4 distinct danger positions, got %d", k.DangerSeen)
	}
}

func TestExtract_Unexplored(t *testing.T) {
	exp := store([]trajectory.Step{
		row(0, 0, trajectory.TileFlat, trajectory.ActionUp, 0),
		row(0, 1, trajectory.TileFlat, trajectory.ActionRight, 0),
		row(2, 1, trajectory.TileFlat, trajectory.ActionRight, 0),
	})
	k := Extract(exp, DefaultConfig())
	// box x 0..2, y 0..1; x outer, y inner
	want := []trajectory.Position{pos(1, 0), pos(1, 1), pos(2, 0)}
	if len(k.Unexplored) != len(want) {
		t.Fatalf("expected %v, got %v", want, k.Unexplored)
	}
	for i := range want {
		if k.Unexplored[i] != want[i] {
			t.Fatalf("unexplored[%d]: expected %v, got %v", i, want[i], k.Unexplored[i])
		}
	}
}

// #endregion extract-tests

// #region weights-tests

func TestWeights_Defaults(t *testing.T) {
	exp := store([]trajectory.Step{row(0, 0, trajectory.TileFlat, trajectory.ActionUp, 0)})
	w := Weights(exp, Extract(exp, DefaultConfig()))
	if w != DefaultWeights() {
		t.Fatalf("expected defaults, got %+v", w)
	}
}

func TestWeights_HoleAndTrap(t *testing.T) {
	holeRight := row(0, 0, trajectory.TileFlat, trajectory.ActionUp, 0)
	holeRight.Right = trajectory.TileHole
	stepIntoHole := holeRight
	stepIntoHole.Action = trajectory.ActionRight

	trapUp := row(0, 0, trajectory.TileFlat, trajectory.ActionUp, 0)
	trapUp.Up = trajectory.TileTrap

	exp := store([]trajectory.Step{holeRight, holeRight, holeRight, stepIntoHole, trapUp})
	w := Weights(exp, Extract(exp, DefaultConfig()))
	// approach ratio 1/4 -> -5 * 0.75
	if w.HoleFearIndex != -3.75 {
		t.Errorf("expected hole fear -3.75, got %v", w.HoleFearIndex)
	}
	if w.TrapInterest != 1.0 {
		t.Errorf("expected trap interest 1.0, got %v", w.TrapInterest)
	}
	if w.GoalApproachRate != 0.5 {
		t.Errorf("expected default goal approach rate, got %v", w.GoalApproachRate)
	}
}

func TestWeights_GoalBias(t *testing.T) {
	exp := store([]trajectory.Step{
		row(0, 0, trajectory.TileFlat, trajectory.ActionRight, 0), // toward
		row(1, 0, trajectory.TileFlat, trajectory.ActionLeft, 0),  // away
		row(0, 0, trajectory.TileFlat, trajectory.ActionRight, 0), // toward
		row(1, 0, trajectory.TileFlat, trajectory.ActionRight, 0), // toward
		row(2, 0, trajectory.TileGoal, trajectory.ActionUp, 900),  // on goal, no reducing direction
	})
	w := Weights(exp, Extract(exp, DefaultConfig()))
	if w.GoalBias != 0.75 {
		t.Fatalf("expected goal bias 0.75, got %v", w.GoalBias)
	}
}

func TestWeights_IgnoresInvalidActions(t *testing.T) {
	s := row(0, 0, trajectory.TileFlat, 0, 0)
	s.Up = trajectory.TileHole
	exp := store([]trajectory.Step{s})
	w := Weights(exp, Extract(exp, DefaultConfig()))
	if w.HoleFearIndex != -2.5 {
		t.Fatalf("invalid action must not count, got %v", w.HoleFearIndex)
	}
}

func TestTowardGoal(t *testing.T) {
	got := towardGoal(pos(0, 0), pos(-2, 3))
	if len(got) != 2 || got[0] != trajectory.ActionUp || got[1] != trajectory.ActionLeft {
		t.Fatalf("unexpected directions %v", got)
	}
	if len(towardGoal(pos(1, 1), pos(1, 1))) != 0 {
		t.Fatal("expected no direction on the goal itself")
	}
}

// #endregion weights-tests

// #region score-tests

func TestDirectionScores(t *testing.T) {
	exp := store([]trajectory.Step{
		row(0, 0, trajectory.TileHole, trajectory.ActionUp, -150),
		row(0, 1, trajectory.TileHole, trajectory.ActionUp, -51),
		row(0, 2, trajectory.TileGoal, trajectory.ActionUp, 1000),
		row(0, 3, trajectory.TileGoal, trajectory.ActionUp, 555),
	})
	s := DirectionScores(exp)
	if s.TileScores.Hole != -100 {
		t.Errorf("expected hole -100 (trunc of -100.5), got %d", s.TileScores.Hole)
	}
	if s.TileScores.Goal != 77 {
		t.Errorf("expected goal 77 (trunc of 77.75), got %d", s.TileScores.Goal)
	}
	if s.TileScores.Trap != -10 || s.GoalDirectionBonus != 10 || s.RevisitPenalty != -5 || s.UnexploredBonus != 5 {
		t.Errorf("unexpected fixed scores %+v", s)
	}
}

func TestDirectionScores_DefaultsWithoutSamples(t *testing.T) {
	exp := store([]trajectory.Step{row(0, 0, trajectory.TileFlat, trajectory.ActionUp, 0)})
	if DirectionScores(exp) != DefaultScores() {
		t.Fatal("expected default scores")
	}
}

// #endregion score-tests
