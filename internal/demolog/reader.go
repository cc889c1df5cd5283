package demolog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region discover

// Discover returns the log files under cfg.Dir matching cfg.Glob, sorted by name.
func Discover(cfg Config) ([]string, error) {
	glob := cfg.Glob
	if glob == "" {
		glob = DefaultGlob
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("stat log dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("log dir %s is not a directory", cfg.Dir)
	}
	files, err := filepath.Glob(filepath.Join(cfg.Dir, glob))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", glob, err)
	}
	sort.Strings(files)
	return files, nil
}

// #endregion discover

// #region load-dir

// LoadDir reads every discovered file. A file that fails schema or parse
// checks is logged and returned with Err set; it never aborts the others.
func LoadDir(cfg Config) ([]FileResult, error) {
	files, err := Discover(cfg)
	if err != nil {
		return nil, err
	}
	results := make([]FileResult, 0, len(files))
	for _, path := range files {
		res := ReadFile(path)
		if res.Err != nil {
			var schemaErr *SchemaError
			if errors.As(res.Err, &schemaErr) {
				log.Warn().Str("file", filepath.Base(path)).Strs("missing", schemaErr.Missing).Msg("Log file lacks required columns, skipping")
			} else {
				log.Warn().Str("file", filepath.Base(path)).Err(res.Err).Msg("Log file could not be parsed, skipping")
			}
		} else {
			log.Debug().
				Str("file", filepath.Base(path)).
				Int("rows", res.Rows).
				Int("dropped", res.DroppedRows).
				Int("episodes", len(res.Episodes)).
				Msg("Log file loaded")
		}
		results = append(results, res)
	}
	return results, nil
}

// ReadFile opens and parses one log file.
func ReadFile(path string) FileResult {
	f, err := os.Open(path)
	if err != nil {
		return FileResult{Path: path, Err: &ParseError{File: path, Err: err}}
	}
	defer f.Close()
	res := Read(f, path)
	return res
}

// #endregion load-dir

// #region read

// Read parses a recorder CSV stream. Rows that are short or have an empty or
// NaN value in any used column are dropped; any other malformed value rejects
// the whole file.
// When an episode column is present, consecutive rows with the same id form
// one episode; otherwise the file is a single episode.
func Read(r io.Reader, name string) FileResult {
	res := FileResult{Path: name}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	// short rows are dropped like empty values
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		res.Err = &SchemaError{File: name, Missing: append([]string(nil), RequiredColumns...)}
		return res
	}
	if err != nil {
		res.Err = &ParseError{File: name, Line: 1, Err: err}
		return res
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		idx[h] = i
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		res.Err = &SchemaError{File: name, Missing: missing}
		return res
	}

	used := append([]string(nil), RequiredColumns...)
	_, hasTimes := idx[ColTimes]
	_, hasEpisode := idx[ColEpisode]
	if hasTimes {
		used = append(used, ColTimes)
	}
	if hasEpisode {
		used = append(used, ColEpisode)
	}

	var current []trajectory.Step
	currentID := ""
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			res.Err = &ParseError{File: name, Line: line, Err: err}
			return res
		}
		if hasMissing(record, idx, used) {
			res.DroppedRows++
			continue
		}

		s, perr := parseStep(record, idx, hasTimes, hasEpisode)
		if perr != nil {
			perr.File = name
			perr.Line = line
			res.Err = perr
			return res
		}

		if hasEpisode && len(current) > 0 && s.Episode != currentID {
			res.Episodes = append(res.Episodes, current)
			current = nil
		}
		currentID = s.Episode
		current = append(current, s)
		res.Rows++
	}
	if len(current) > 0 {
		res.Episodes = append(res.Episodes, current)
	}
	return res
}

func hasMissing(record []string, idx map[string]int, cols []string) bool {
	for _, col := range cols {
		if idx[col] >= len(record) {
			return true
		}
		v := strings.TrimSpace(record[idx[col]])
		if v == "" || strings.EqualFold(v, "nan") {
			return true
		}
	}
	return false
}

func parseStep(record []string, idx map[string]int, hasTimes, hasEpisode bool) (trajectory.Step, *ParseError) {
	var s trajectory.Step
	num := func(col string) (float64, *ParseError) {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[idx[col]]), 64)
		if err != nil {
			return 0, &ParseError{Column: col, Err: err}
		}
		return v, nil
	}
	tile := func(col string) (trajectory.Tile, *ParseError) {
		v, err := num(col)
		return trajectory.Tile(int(v)), err
	}

	x, err := num(ColX)
	if err != nil {
		return s, err
	}
	y, err := num(ColY)
	if err != nil {
		return s, err
	}
	// recorder positions are floats; round half to even
	s.Pos = trajectory.Position{X: int(math.RoundToEven(x)), Y: int(math.RoundToEven(y))}

	if s.Env, err = tile(ColEnv); err != nil {
		return s, err
	}
	if s.Up, err = tile(ColUp); err != nil {
		return s, err
	}
	if s.Down, err = tile(ColDown); err != nil {
		return s, err
	}
	if s.Right, err = tile(ColRight); err != nil {
		return s, err
	}
	if s.Left, err = tile(ColLeft); err != nil {
		return s, err
	}
	a, err := num(ColAction)
	if err != nil {
		return s, err
	}
	s.Action = trajectory.Action(int(a))
	if s.Reward, err = num(ColReward); err != nil {
		return s, err
	}
	if hasTimes {
		t, err := num(ColTimes)
		if err != nil {
			return s, err
		}
		s.Time = int(t)
	}
	if hasEpisode {
		s.Episode = strings.TrimSpace(record[idx[ColEpisode]])
	}
	return s, nil
}

// #endregion read
