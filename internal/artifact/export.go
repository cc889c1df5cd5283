package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/cloning"
)

// #region export
// Export writes every artifact of b into dir, creating it if needed.
// The reward gradient and goal positions are omitted when empty.
func Export(dir string, b *Bundle) ([]File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	model := b.Model
	model.BCPolicy = b.BCEncoded()

	type item struct {
		name    string
		value   any
		indent  string
		entries int
		skip    bool
	}
	items := []item{
		{name: QTableFile, value: b.QTable, entries: len(b.QTable)},
		{name: ILPolicyFile, value: b.ILPolicy, indent: "    ", entries: len(b.ILPolicy)},
		{name: BCPolicyFile, value: b.BCEncoded(), indent: "  ", entries: len(b.BCPolicy)},
		{name: RewardGradientFile, value: b.RewardGradient, indent: "  ", entries: len(b.RewardGradient), skip: len(b.RewardGradient) == 0},
		{name: GoalPositionsFile, value: b.GoalPositions, indent: "  ", entries: len(b.GoalPositions), skip: len(b.GoalPositions) == 0},
		{name: ModelDataFile, value: model, indent: "  ", entries: len(b.BCPolicy)},
		{name: ParametersFile, value: b.Parameters, indent: "  ", entries: 1},
	}

	files := make([]File, 0, len(items))
	for _, it := range items {
		if it.skip {
			log.Debug().Str("file", it.name).Msg("Artifact empty, not written")
			continue
		}
		f, err := writeJSON(dir, it.name, it.value, it.indent)
		if err != nil {
			return files, err
		}
		f.Entries = it.entries
		files = append(files, f)
	}
	return files, nil
}

func writeJSON(dir, name string, v any, indent string) (File, error) {
	var data []byte
	var err error
	if indent == "" {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", indent)
	}
	if err != nil {
		return File{}, fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return File{}, fmt.Errorf("write %s: %w", name, err)
	}
	sum := sha256.Sum256(data)
	return File{
		Name:     name,
		Path:     path,
		Bytes:    int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
	}, nil
}

// #endregion export

// #region load
// Load reads an export directory back into a Bundle. The Q table and
// model_data.json are required; every other file is optional.
func Load(dir string) (*Bundle, error) {
	b := &Bundle{BCFormat: cloning.FormatProbabilities}

	if err := readJSON(dir, QTableFile, &b.QTable, true); err != nil {
		return nil, err
	}
	if err := readJSON(dir, ILPolicyFile, &b.ILPolicy, false); err != nil {
		return nil, err
	}
	if err := readJSON(dir, RewardGradientFile, &b.RewardGradient, false); err != nil {
		return nil, err
	}
	if err := readJSON(dir, GoalPositionsFile, &b.GoalPositions, false); err != nil {
		return nil, err
	}
	if err := readJSON(dir, ParametersFile, &b.Parameters, false); err != nil {
		return nil, err
	}

	var wire struct {
		ModelData
		BCPolicy json.RawMessage `json:"bc_policy"`
	}
	if err := readJSON(dir, ModelDataFile, &wire, true); err != nil {
		return nil, err
	}
	b.Model = wire.ModelData

	bcRaw := wire.BCPolicy
	if standalone, err := os.ReadFile(filepath.Join(dir, BCPolicyFile)); err == nil {
		bcRaw = standalone
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", BCPolicyFile, err)
	}
	if err := b.decodeBC(bcRaw); err != nil {
		return nil, err
	}
	b.Model.BCPolicy = b.BCEncoded()
	return b, nil
}

func readJSON(dir, name string, v any, required bool) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// decodeBC accepts either format. Entries carrying a "samples" field are
// probability distributions; anything else is treated as counts.
func (b *Bundle) decodeBC(raw json.RawMessage) error {
	b.BCPolicy = map[string]cloning.Distribution{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var probe map[string]map[string]json.Number
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("parse bc policy: %w", err)
	}
	counts := false
	for _, entry := range probe {
		if _, ok := entry["samples"]; !ok {
			counts = true
		}
		break
	}
	if !counts {
		return json.Unmarshal(raw, &b.BCPolicy)
	}

	b.BCFormat = cloning.FormatCounts
	if err := json.Unmarshal(raw, &b.BCCounts); err != nil {
		return fmt.Errorf("parse bc counts: %w", err)
	}
	for k, m := range b.BCCounts {
		c, err := cloning.CountsFromMap(m)
		if err != nil {
			return fmt.Errorf("parse bc counts for %s: %w", k, err)
		}
		b.BCPolicy[k] = c.Distribution()
	}
	return nil
}

// #endregion load
