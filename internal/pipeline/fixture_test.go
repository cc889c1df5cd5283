package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/cloning"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region fixture-tests

func runFixtureFile(t *testing.T, name string) *Result {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	res, mismatches, err := RunFixture(context.Background(), f)
	if err != nil {
		t.Fatalf("RunFixture: %v", err)
	}
	for _, m := range mismatches {
		t.Errorf("%s: %s: want %s, got %s", name, m.Field, m.Want, m.Got)
	}
	return res
}

// TestFixture_GoalPath is the smallest regression baseline: one step onto the goal.
func TestFixture_GoalPath(t *testing.T) {
	res := runFixtureFile(t, "goal_path.json")
	if !res.Eval.Passed {
		t.Fatalf("expected eval to pass, got %s", res.Eval.Reason)
	}
}

// TestFixture_HoleField covers danger zones, the imitation tie on the shared
// start state, and weights derived from hole, trap and goal adjacency.
func TestFixture_HoleField(t *testing.T) {
	res := runFixtureFile(t, "hole_field.json")
	if !res.Eval.Passed {
		t.Fatalf("expected eval to pass, got %s", res.Eval.Reason)
	}
	if res.Knowledge.DangerSeen != 1 {
		t.Fatalf("expected 1 distinct danger position, got %d", res.Knowledge.DangerSeen)
	}
}

// TestFixture_BonusEnv runs the environment key spaces with the imitation
// bonus and counts-format behavior cloning.
func TestFixture_BonusEnv(t *testing.T) {
	res := runFixtureFile(t, "bonus_env.json")
	if res.Bundle.BCFormat != cloning.FormatCounts {
		t.Fatalf("expected counts format, got %s", res.Bundle.BCFormat)
	}
	if len(res.Bundle.BCCounts) != res.BCStates {
		t.Fatalf("expected %d count rows, got %d", res.BCStates, len(res.Bundle.BCCounts))
	}
	bonuses := 0
	for _, m := range res.QLearn.Epochs {
		bonuses += m.Bonuses
	}
	if bonuses == 0 {
		t.Fatal("expected the imitation bonus to be applied")
	}
}

// TestFixture_Deterministic runs the same fixture twice and compares Q tables.
func TestFixture_Deterministic(t *testing.T) {
	a := runFixtureFile(t, "hole_field.json")
	b := runFixtureFile(t, "hole_field.json")
	for k, row := range a.QLearn.Table {
		other, ok := b.QLearn.Table[k]
		if !ok {
			t.Fatalf("state %s missing from second run", k)
		}
		if *row != *other {
			t.Fatalf("state %s: %v != %v", k, *row, *other)
		}
	}
}

// TestNewFixture_RoundTrip captures a fixture from episodes and verifies it
// replays without mismatches.
func TestNewFixture_RoundTrip(t *testing.T) {
	src, err := LoadFixture(filepath.Join("testdata", "hole_field.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	episodes := make([][]trajectory.Step, 0, len(src.Episodes))
	for i := range src.Episodes {
		episodes = append(episodes, src.Episodes[i].ToSteps())
	}

	f, err := NewFixture("captured", src.Config, episodes)
	if err != nil {
		t.Fatalf("NewFixture: %v", err)
	}
	if f.Episodes[0].ID != "corridor" {
		t.Fatalf("expected episode id from steps, got %s", f.Episodes[0].ID)
	}
	if f.Expected.Transitions != 6 {
		t.Fatalf("expected 6 transitions, got %d", f.Expected.Transitions)
	}
	_, mismatches, err := RunFixture(context.Background(), f)
	if err != nil {
		t.Fatalf("RunFixture: %v", err)
	}
	if len(mismatches) != 0 {
		t.Fatalf("expected no mismatches, got %+v", mismatches)
	}
}

// TestCompare_ReportsMismatch verifies a wrong expectation is reported.
func TestFixtureConfig_ZeroThresholds(t *testing.T) {
	zero := 0.0
	fc := FixtureConfig{
		Seed:          1,
		TerminalRule:  string(trajectory.RuleNeutralStep),
		FallReward:    &zero,
		NeutralReward: &zero,
	}
	data, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded FixtureConfig
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cfg := decoded.ToConfig()
	if cfg.Terminal.FallReward != 0 || cfg.Terminal.NeutralReward != 0 {
		t.Fatalf("zero thresholds lost: %+v", cfg.Terminal)
	}

	ep := FixtureEpisode{ID: "ep001", Rows: [][9]float64{
		{0, 0, 1, 1, 1, 1, 1, 2, 0},
		{1, 0, 1, 1, 1, 1, 1, 2, 0},
		{2, 0, 2, 1, 1, 1, 1, 2, 5},
	}}
	f := &Fixture{Config: decoded, Episodes: []FixtureEpisode{ep}}
	exp, err := f.Experience(cfg)
	if err != nil {
		t.Fatalf("Experience: %v", err)
	}
	if got := exp.TerminalCount(); got != 1 {
		t.Fatalf("expected only the last row terminal, got %d", got)
	}
}

func TestCompare_ReportsMismatch(t *testing.T) {
	want := FixtureExpected{Transitions: 3, ILActions: map[string]int{"(0, 0, 1, 1, 1, 1, 1)": 4}}
	got := FixtureExpected{Transitions: 2, ILActions: map[string]int{"(0, 0, 1, 1, 1, 1, 1)": 2}}
	ms := Compare(want, got)
	if len(ms) != 2 {
		t.Fatalf("expected 2 mismatches, got %d: %+v", len(ms), ms)
	}
	if ms[0].Field != "transitions" || ms[0].Want != "3" || ms[0].Got != "2" {
		t.Fatalf("unexpected first mismatch: %+v", ms[0])
	}
}

// TestLoadFixture_NotFound verifies error on missing file.
func TestLoadFixture_NotFound(t *testing.T) {
	_, err := LoadFixture("testdata/nonexistent.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

// TestLoadFixture_Malformed verifies error on invalid JSON.
func TestLoadFixture_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not valid json}"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := LoadFixture(path)
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

// #endregion fixture-tests
