package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/logging"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/state"
)

const logHeader = "times,nowX,nowY,env,envUp,envDown,envRight,envLeft,action,reward\n"

func writeLog(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func testConfig(t *testing.T) (Config, string) {
	t.Helper()
	root := t.TempDir()
	logs := filepath.Join(root, "logs")
	if err := os.MkdirAll(logs, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Logs.Dir = logs
	cfg.ExportDir = filepath.Join(root, "out")
	cfg.QLearn.Seed = 3
	return cfg, logs
}

func testStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// #region run-tests

func TestRun_GoalScenario(t *testing.T) {
	cfg, logs := testConfig(t)
	writeLog(t, logs, "Plog1.csv", logHeader+
		"0,0,0,1,1,1,1,1,2,0\n"+
		"1,1,0,2,1,1,1,1,2,1000\n")
	store := testStore(t)

	r, err := NewRunner(cfg, store)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Status != state.StatusCompleted {
		t.Fatalf("expected completed, got %s", sum.Status)
	}
	if sum.Transitions != 2 || sum.Terminal != 1 {
		t.Fatalf("expected 2 transitions with 1 terminal, got %d/%d", sum.Transitions, sum.Terminal)
	}
	if !sum.GoalKnown {
		t.Fatal("expected goal to be known")
	}

	b, err := artifact.Load(cfg.ExportDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Model.EstimatedGoal.X != 1 || b.Model.EstimatedGoal.Y != 0 {
		t.Fatalf("expected goal (1,0), got (%d,%d)", b.Model.EstimatedGoal.X, b.Model.EstimatedGoal.Y)
	}
	if _, ok := b.QTable["(0, 0, 1, 1, 1, 1, 1)"]; !ok {
		t.Fatal("expected start state in exported q table")
	}

	// registry
	active, err := store.GetActive()
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.RunID != sum.RunID {
		t.Fatalf("expected active run %s, got %s", sum.RunID, active.RunID)
	}
	arts, err := store.ListArtifacts(sum.RunID)
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	if len(arts) != len(sum.Files) || len(arts) != 7 {
		t.Fatalf("expected 7 artifacts recorded, got %d (files %d)", len(arts), len(sum.Files))
	}
	stages, err := logging.ListStages(store.DB(), sum.RunID)
	if err != nil {
		t.Fatalf("ListStages: %v", err)
	}
	want := []string{
		logging.StageLoad, logging.StageImitation, logging.StageTrain, logging.StageCloning,
		logging.StageKnowledge, logging.StageEval, logging.StageExport,
	}
	if len(stages) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(stages))
	}
	for i, s := range stages {
		if s.Stage != want[i] {
			t.Errorf("stage %d: expected %s, got %s", i, want[i], s.Stage)
		}
	}
}

func TestRun_SkipsFileMissingReward(t *testing.T) {
	cfg, logs := testConfig(t)
	writeLog(t, logs, "Plog1.csv", logHeader+
		"0,0,0,1,1,1,1,1,2,0\n"+
		"1,1,0,2,1,1,1,1,2,1000\n")
	writeLog(t, logs, "Plog2.csv", "times,nowX,nowY,env,envUp,envDown,envRight,envLeft,action\n"+
		"0,5,5,1,1,1,1,1,3\n")

	r, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Load.Files != 2 || sum.Load.Skipped != 1 {
		t.Fatalf("expected 2 files with 1 skipped, got %d/%d", sum.Load.Files, sum.Load.Skipped)
	}
	if len(sum.Load.Failures) != 1 || sum.Load.Failures[0].Kind != "schema" {
		t.Fatalf("expected one schema failure, got %+v", sum.Load.Failures)
	}
	if sum.Transitions != 2 {
		t.Fatalf("expected 2 transitions from the valid file, got %d", sum.Transitions)
	}
}

func TestRun_EmptyDirAborts(t *testing.T) {
	cfg, _ := testConfig(t)
	store := testStore(t)

	r, err := NewRunner(cfg, store)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	sum, err := r.Run(context.Background())
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
	if sum.Status != state.StatusAborted {
		t.Fatalf("expected aborted, got %s", sum.Status)
	}
	if _, statErr := os.Stat(cfg.ExportDir); !os.IsNotExist(statErr) {
		t.Fatalf("export dir must not be created, stat err: %v", statErr)
	}

	rec, err := store.GetRun(sum.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Status != state.StatusAborted {
		t.Fatalf("expected stored status aborted, got %s", rec.Status)
	}
	if _, err := store.GetActive(); err == nil {
		t.Fatal("aborted run must not become active")
	}
	stages, err := logging.ListStages(store.DB(), sum.RunID)
	if err != nil {
		t.Fatalf("ListStages: %v", err)
	}
	if len(stages) != 1 || stages[0].Outcome != logging.OutcomeAborted {
		t.Fatalf("expected a single aborted load stage, got %+v", stages)
	}
}

func TestRun_MissingDirAborts(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.Logs.Dir = filepath.Join(t.TempDir(), "nope")

	r, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	_, err = r.Run(context.Background())
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestRun_InvalidActionsExcluded(t *testing.T) {
	cfg, logs := testConfig(t)
	writeLog(t, logs, "Plog1.csv", logHeader+
		"0,0,0,1,1,1,1,1,0,0\n"+
		"1,0,0,1,1,1,1,1,2,0\n"+
		"2,1,0,2,1,1,1,1,2,1000\n")

	r, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Invalid != 1 {
		t.Fatalf("expected 1 invalid action, got %d", sum.Invalid)
	}
	b, err := artifact.Load(cfg.ExportDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for k, a := range b.ILPolicy {
		if a < 1 || a > 4 {
			t.Fatalf("imitation state %s has invalid action %d", k, a)
		}
	}
	for k, row := range b.QTable {
		if row[0] != 0 {
			t.Fatalf("state %s wrote action slot 0", k)
		}
	}
}

func TestNewRunner_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BCFormat = "yaml"
	_, err := NewRunner(cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "yaml") {
		t.Fatalf("expected format error, got %v", err)
	}
}

// #endregion run-tests

func TestRecordJSON_LogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	if got := recordJSON("summary", map[string]float64{"x": math.NaN()}); got != "{}" {
		t.Fatalf("expected empty object, got %q", got)
	}
	if !strings.Contains(buf.String(), "Encode run record failed") || !strings.Contains(buf.String(), `"record":"summary"`) {
		t.Fatalf("expected logged encode failure, got %q", buf.String())
	}
	if got := recordJSON("config", map[string]int{"a": 1}); got != `{"a":1}` {
		t.Fatalf("unexpected encoding %q", got)
	}
}
