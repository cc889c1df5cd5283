package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/cloning"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/knowledge"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

func sampleBundle(format cloning.Format) *Bundle {
	goal := trajectory.Position{X: 1, Y: 0}
	k := knowledge.Knowledge{
		Goal:       &goal,
		Danger:     []trajectory.Position{{X: 3, Y: 3}},
		Unexplored: []trajectory.Position{{X: 2, Y: 2}, {X: 2, Y: 3}},
	}
	w := knowledge.DefaultWeights()
	counts := map[string]map[string]int{"1,1,1,1": {"1": 0, "2": 3, "3": 0, "4": 1}}
	c, _ := cloning.CountsFromMap(counts["1,1,1,1"])
	dists := map[string]cloning.Distribution{"1,1,1,1": c.Distribution()}

	b := &Bundle{
		QTable:         map[string][5]float64{"(0, 0, 1, 1, 1, 1, 1)": {0, 0, 90, 0, 0}},
		ILPolicy:       map[string]int{"(0, 0, 1, 1, 1, 1, 1)": 2},
		BCFormat:       format,
		BCPolicy:       dists,
		RewardGradient: map[string]cloning.RewardStats{"(1, 1, 1, 1, 1)": {Avg: 0, Max: 0, Min: 0, Count: 1}},
		Parameters:     NewParameters(k, w, 1),
	}
	if format == cloning.FormatCounts {
		b.BCCounts = counts
	}
	b.Model = NewModelData(k, b.BCEncoded(), w, knowledge.DefaultScores(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	return b
}

func TestExport_WritesEngineFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "DemoAIs")
	files, err := Export(dir, sampleBundle(cloning.FormatProbabilities))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	// goal positions are empty and omitted
	if len(files) != 6 {
		t.Fatalf("expected 6 files, got %d", len(files))
	}
	if _, err := os.Stat(filepath.Join(dir, GoalPositionsFile)); !os.IsNotExist(err) {
		t.Fatal("empty goal positions must not be written")
	}
	for _, f := range files {
		if len(f.Checksum) != 64 || f.Bytes == 0 {
			t.Errorf("%s: unexpected checksum/size %q/%d", f.Name, f.Checksum, f.Bytes)
		}
	}

	q, err := os.ReadFile(filepath.Join(dir, QTableFile))
	if err != nil {
		t.Fatalf("read q table: %v", err)
	}
	if string(q) != `{"(0, 0, 1, 1, 1, 1, 1)":[0,0,90,0,0]}` {
		t.Fatalf("unexpected q table bytes %s", q)
	}

	il, err := os.ReadFile(filepath.Join(dir, ILPolicyFile))
	if err != nil {
		t.Fatalf("read il policy: %v", err)
	}
	if !strings.Contains(string(il), "\n    \"(0, 0, 1, 1, 1, 1, 1)\": 2") {
		t.Fatalf("expected 4-space indent, got %s", il)
	}
}

func TestExport_ModelDataShape(t *testing.T) {
	dir := t.TempDir()
	if _, err := Export(dir, sampleBundle(cloning.FormatProbabilities)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ModelDataFile))
	if err != nil {
		t.Fatalf("read model data: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parse model data: %v", err)
	}
	for _, key := range []string{"version", "generated_at", "estimated_goal", "danger_zones", "bc_policy", "decision_weights", "direction_scores"} {
		if _, ok := m[key]; !ok {
			t.Errorf("model_data.json missing %s", key)
		}
	}
	if string(m["estimated_goal"]) != `{
    "x": 1,
    "y": 0,
    "known": true
  }` {
		t.Errorf("unexpected estimated_goal %s", m["estimated_goal"])
	}
}

func TestExportLoad_Probabilities(t *testing.T) {
	dir := t.TempDir()
	src := sampleBundle(cloning.FormatProbabilities)
	if _, err := Export(dir, src); err != nil {
		t.Fatalf("Export: %v", err)
	}
	b, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.QTable["(0, 0, 1, 1, 1, 1, 1)"][2] != 90 {
		t.Fatalf("unexpected q table %v", b.QTable)
	}
	if b.ILPolicy["(0, 0, 1, 1, 1, 1, 1)"] != 2 {
		t.Fatalf("unexpected il policy %v", b.ILPolicy)
	}
	if b.BCFormat != cloning.FormatProbabilities {
		t.Fatalf("expected probabilities format, got %s", b.BCFormat)
	}
	d := b.BCPolicy["1,1,1,1"]
	if d.Right != 0.75 || d.Left != 0.25 || d.Samples != 4 {
		t.Fatalf("unexpected distribution %+v", d)
	}
	if pos, ok := b.Model.EstimatedGoal.Position(); !ok || pos != (trajectory.Position{X: 1, Y: 0}) {
		t.Fatalf("unexpected goal %+v", b.Model.EstimatedGoal)
	}
	if b.Parameters.EstimatedGoal != "1,0" || b.Parameters.Statistics.UnexploredAreas != 2 {
		t.Fatalf("unexpected parameters %+v", b.Parameters)
	}
}

func TestExportLoad_Counts(t *testing.T) {
	dir := t.TempDir()
	if _, err := Export(dir, sampleBundle(cloning.FormatCounts)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	b, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.BCFormat != cloning.FormatCounts {
		t.Fatalf("expected counts format, got %s", b.BCFormat)
	}
	if b.BCCounts["1,1,1,1"]["2"] != 3 {
		t.Fatalf("unexpected counts %v", b.BCCounts)
	}
	if b.BCPolicy["1,1,1,1"].Right != 0.75 {
		t.Fatalf("expected derived distribution, got %+v", b.BCPolicy["1,1,1,1"])
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestGoalOf_Unknown(t *testing.T) {
	g := GoalOf(knowledge.Knowledge{})
	if g.X != -1 || g.Y != -1 || g.Known {
		t.Fatalf("unexpected unknown goal %+v", g)
	}
	p := NewParameters(knowledge.Knowledge{}, knowledge.DefaultWeights(), 0)
	if p.EstimatedGoal != "unknown" {
		t.Fatalf("expected unknown, got %q", p.EstimatedGoal)
	}
}
