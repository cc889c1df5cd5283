package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/pipeline"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/report"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/state"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

const goalLog = "times,nowX,nowY,env,envUp,envDown,envRight,envLeft,action,reward\n" +
	"0,0,0,1,1,1,1,1,2,0\n" +
	"1,1,0,2,1,1,1,1,2,1000\n"

type cliEnv struct {
	logs   string
	export string
	db     string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	root := t.TempDir()
	env := cliEnv{
		logs:   filepath.Join(root, "logs"),
		export: filepath.Join(root, "out"),
		db:     filepath.Join(root, "db", "runs.db"),
	}
	require.NoError(t, os.MkdirAll(env.logs, 0o755))
	return env
}

func (e cliEnv) writeLog(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.logs, name), []byte(body), 0o644))
}

// resetFlags restores subcommand flag variables between executions of the
// shared root command.
func resetFlags() {
	trainJSON, trainReport, trainNoDB = false, false, false
	inspectRun, inspectJSON, inspectLast = "", false, 20
	reportRun, reportOut, reportMap, reportNoColor = "", "", false, false
	queryState, querySummary, queryJSON = "", false, false
	replayFixture = ""
	fixtureOut, fixtureDescription = "", ""
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	full := append(args,
		"--log-dir", e.logs,
		"--export-dir", e.export,
		"--db", e.db,
		"--profile=",
		"--log-level", "error",
	)
	rootCmd.SetArgs(full)
	err := Execute()
	return out.String(), err
}

func (e cliEnv) train(t *testing.T) pipeline.Summary {
	t.Helper()
	out, err := e.run(t, "train", "--seed", "3", "--json")
	require.NoError(t, err)
	var sum pipeline.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	return sum
}

// #region train

func TestTrain_ExportsAndRecordsRun(t *testing.T) {
	env := newCLIEnv(t)
	env.writeLog(t, "Plog1.csv", goalLog)

	sum := env.train(t)
	assert.Equal(t, state.StatusCompleted, sum.Status)
	assert.Equal(t, 2, sum.Transitions)
	assert.True(t, sum.GoalKnown)
	assert.Len(t, sum.Files, 7)
	assert.NotEmpty(t, sum.RunID)

	for _, f := range sum.Files {
		assert.FileExists(t, f.Path)
	}
}

func TestTrain_TableOutput(t *testing.T) {
	env := newCLIEnv(t)
	env.writeLog(t, "Plog1.csv", goalLog)

	out, err := env.run(t, "train", "--seed", "3", "--report")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:       completed")
	assert.Contains(t, out, "Transitions:  2 (1 terminal, 0 invalid actions)")
	assert.Contains(t, out, "Artifact")
	assert.FileExists(t, filepath.Join(env.export, report.DefaultFile))
}

func TestTrain_EmptyLogDir(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "train", "--seed", "3")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrEmptyDataset)
	assert.NoDirExists(t, env.export)
}

func TestTrain_NoDB(t *testing.T) {
	env := newCLIEnv(t)
	env.writeLog(t, "Plog1.csv", goalLog)

	_, err := env.run(t, "train", "--seed", "3", "--no-db")
	require.NoError(t, err)
	assert.NoFileExists(t, env.db)
	assert.DirExists(t, env.export)
}

// #endregion train

// #region inspect

func TestInspect_ListAndDetail(t *testing.T) {
	env := newCLIEnv(t)
	env.writeLog(t, "Plog1.csv", goalLog)
	sum := env.train(t)

	out, err := env.run(t, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, shortID(sum.RunID)+" *")
	assert.Contains(t, out, "completed")

	out, err = env.run(t, "inspect", "--run", sum.RunID, "--json")
	require.NoError(t, err)
	var detail detailOutput
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, sum.RunID, detail.RunID)
	assert.Len(t, detail.Stages, 7)
	assert.Len(t, detail.Artifacts, 7)
	require.NotNil(t, detail.Summary)
	assert.Equal(t, 2, detail.Summary.Transitions)
}

func TestInspect_NoRuns(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "no runs found")
}

func TestActivate_UnknownRun(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "activate", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestActivate_CompletedRun(t *testing.T) {
	env := newCLIEnv(t)
	env.writeLog(t, "Plog1.csv", goalLog)
	sum := env.train(t)

	out, err := env.run(t, "activate", sum.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, sum.RunID)
}

// #endregion inspect

// #region fixtures

func TestReplay_Pass(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "replay", "--fixture", filepath.Join("..", "pipeline", "testdata", "goal_path.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
}

func TestReplay_Mismatch(t *testing.T) {
	env := newCLIEnv(t)
	f, err := pipeline.LoadFixture(filepath.Join("..", "pipeline", "testdata", "goal_path.json"))
	require.NoError(t, err)
	f.Expected.Transitions = 99
	data, err := json.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := env.run(t, "replay", "--fixture", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 mismatches")
	assert.Contains(t, out, "transitions")
	assert.Contains(t, out, "99")
}

func TestReplay_RequiresFixture(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "replay")
	require.Error(t, err)
}

func TestFixtureExport_Replays(t *testing.T) {
	env := newCLIEnv(t)
	env.writeLog(t, "Plog1.csv", goalLog)
	path := filepath.Join(t.TempDir(), "fx", "captured.json")

	out, err := env.run(t, "fixture-export", "--out", path, "--description", "captured goal run")
	require.NoError(t, err)
	assert.Contains(t, out, "1 episodes, 2 transitions")

	f, err := pipeline.LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, "captured goal run", f.Description)
	assert.NotZero(t, f.Config.Seed)

	out, err = env.run(t, "replay", "--fixture", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
}

// #endregion fixtures

// #region report

func TestReport_Map(t *testing.T) {
	env := newCLIEnv(t)
	env.writeLog(t, "Plog1.csv", goalLog)
	env.train(t)

	out, err := env.run(t, "report", "--map", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, report.GlyphGoal)
	assert.NotContains(t, out, "\x1b[")
}

func TestReport_HTMLUsesActiveRun(t *testing.T) {
	env := newCLIEnv(t)
	env.writeLog(t, "Plog1.csv", goalLog)
	sum := env.train(t)
	path := filepath.Join(t.TempDir(), "r.html")

	out, err := env.run(t, "report", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), sum.RunID)
}

func TestReport_NoArtifacts(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "report")
	require.Error(t, err)
}

// #endregion report

// #region query

func TestParseStateFlag(t *testing.T) {
	key, err := parseStateFlag("0, -1,1,1,0, 1,0")
	require.NoError(t, err)
	assert.Equal(t, trajectory.FullKey{X: 0, Y: -1, Env: 1, Up: 1, Down: 0, Right: 1, Left: 0}, key)

	_, err = parseStateFlag("1,2,3")
	assert.Error(t, err)
	_, err = parseStateFlag("a,0,1,1,0,1,0")
	assert.Error(t, err)
}

func TestQuery_RequiresExactlyOneMode(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "query")
	require.Error(t, err)
	_, err = env.run(t, "query", "--summary", "--state", "0,0,1,1,1,1,1")
	require.Error(t, err)
}

// #endregion query

func TestVersion(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "demoai "), out)
	assert.Contains(t, out, Commit)
}
