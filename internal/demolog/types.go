package demolog

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region columns

// Column names written by the game's demo recorder.
const (
	ColTimes    = "times"
	ColX        = "nowX"
	ColY        = "nowY"
	ColEnv      = "env"
	ColUp       = "envUp"
	ColDown     = "envDown"
	ColRight    = "envRight"
	ColLeft     = "envLeft"
	ColAction   = "action"
	ColReward   = "reward"
	ColEpisode  = "episode"
	DefaultGlob = "Plog*.csv"
)

// RequiredColumns must all be present for a file to be used.
var RequiredColumns = []string{ColX, ColY, ColEnv, ColUp, ColDown, ColRight, ColLeft, ColAction, ColReward}

// #endregion columns

// #region errors

// SchemaError reports a log file that lacks required columns. The file is skipped.
type SchemaError struct {
	File    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing columns %s", e.File, strings.Join(e.Missing, ", "))
}

// ParseError reports a file that could not be read or converted. The file is skipped.
type ParseError struct {
	File   string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s:%d: column %s: %v", e.File, e.Line, e.Column, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// #endregion errors

// #region results

// FileResult is the outcome of reading one log file.
type FileResult struct {
	Path        string
	Episodes    [][]trajectory.Step
	Rows        int // rows kept
	DroppedRows int // rows with an empty required field
	Err         error
}

// Steps returns the number of steps across all episodes of the file.
func (r FileResult) Steps() int {
	n := 0
	for _, ep := range r.Episodes {
		n += len(ep)
	}
	return n
}

// Config controls log discovery.
type Config struct {
	Dir  string
	Glob string
}

// DefaultConfig reads Plog*.csv from the recorder's default directory.
func DefaultConfig() Config {
	return Config{
		Dir:  "Assets/DemoLogs",
		Glob: DefaultGlob,
	}
}

// #endregion results
