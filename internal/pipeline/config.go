package pipeline

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/cloning"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/demolog"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/eval"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/imitation"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/knowledge"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/qlearn"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// ErrEmptyDataset aborts a run when no usable transition was loaded.
var ErrEmptyDataset = errors.New("no usable transitions")

// #region config
// Config is passed by value to every stage of a run.
type Config struct {
	Logs       demolog.Config
	ExportDir  string
	Terminal   trajectory.TerminalConfig
	QLearn     qlearn.Config
	ILKeySpace imitation.KeySpace
	BCKeySpace cloning.KeySpace
	BCFormat   cloning.Format
	Knowledge  knowledge.Config
	Eval       eval.EvalConfig
	FailOnEval bool // skip export when validation fails
}

// DefaultConfig returns the pipeline defaults: threshold terminal rule,
// full-key imitation, surroundings-keyed probabilities, bonus disabled.
func DefaultConfig() Config {
	return Config{
		Logs:       demolog.DefaultConfig(),
		ExportDir:  "Assets/DemoAIs",
		Terminal:   trajectory.DefaultTerminalConfig(),
		QLearn:     qlearn.DefaultConfig(),
		ILKeySpace: imitation.KeySpaceFull,
		BCKeySpace: cloning.KeySpaceSurroundings,
		BCFormat:   cloning.FormatProbabilities,
		Knowledge:  knowledge.DefaultConfig(),
		Eval:       eval.DefaultEvalConfig(),
		FailOnEval: true,
	}
}

// Validate checks every stage's settings.
func (c Config) Validate() error {
	if err := c.Terminal.Validate(); err != nil {
		return fmt.Errorf("terminal config: %w", err)
	}
	if err := c.QLearn.Validate(); err != nil {
		return fmt.Errorf("qlearn config: %w", err)
	}
	switch c.ILKeySpace {
	case imitation.KeySpaceFull, imitation.KeySpaceEnvironment:
	default:
		return fmt.Errorf("unknown imitation key space %q", c.ILKeySpace)
	}
	switch c.BCKeySpace {
	case cloning.KeySpaceSurroundings, cloning.KeySpaceEnvironment:
	default:
		return fmt.Errorf("unknown behavior-cloning key space %q", c.BCKeySpace)
	}
	switch c.BCFormat {
	case cloning.FormatProbabilities, cloning.FormatCounts:
	default:
		return fmt.Errorf("unknown behavior-cloning format %q", c.BCFormat)
	}
	if c.Knowledge.DangerTopK < 0 {
		return fmt.Errorf("danger top-k must not be negative, got %d", c.Knowledge.DangerTopK)
	}
	return nil
}

// #endregion config
