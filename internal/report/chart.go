package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/qlearn"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// DefaultFile is the report name written into the export directory.
const DefaultFile = "training_report.html"

// Data is everything a training report plots.
type Data struct {
	RunID  string
	Epochs []qlearn.EpochMetric
	Bundle *artifact.Bundle
}

// #region html
// Render writes an HTML page with the per-epoch update curve, the
// demonstrated action mix and the maximum Q value of each state.
func Render(w io.Writer, d Data) error {
	page := components.NewPage()
	page.SetPageTitle("Training report")
	page.AddCharts(deltaChart(d), actionChart(d.Bundle), rowChart(d.Bundle))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// WriteHTML renders the report into path, creating its directory.
func WriteHTML(path string, d Data) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Render(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func deltaChart(d Data) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Q updates per epoch", Subtitle: d.RunID}),
		charts.WithXAxisOpts(opts.XAxis{Name: "epoch"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "|ΔQ|"}),
	)
	epochs := make([]string, 0, len(d.Epochs))
	mean := make([]opts.LineData, 0, len(d.Epochs))
	peak := make([]opts.LineData, 0, len(d.Epochs))
	for _, m := range d.Epochs {
		epochs = append(epochs, fmt.Sprintf("%d", m.Epoch))
		mean = append(mean, opts.LineData{Value: m.MeanDelta})
		peak = append(peak, opts.LineData{Value: m.MaxDelta})
	}
	line.SetXAxis(epochs).
		AddSeries("mean", mean).
		AddSeries("max", peak)
	return line
}

// actionChart counts the imitation policy's action per state.
func actionChart(b *artifact.Bundle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Demonstrated actions", Subtitle: "imitation policy states per action"}),
	)
	counts := ActionCounts(b)
	names := make([]string, 0, len(trajectory.Actions))
	items := make([]opts.BarData, 0, len(trajectory.Actions))
	for _, a := range trajectory.Actions {
		names = append(names, a.String())
		items = append(items, opts.BarData{Value: counts[a]})
	}
	bar.SetXAxis(names).AddSeries("states", items)
	return bar
}

// rowChart shows the best value of each Q row, sorted descending.
func rowChart(b *artifact.Bundle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "State values", Subtitle: "max Q per state"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "state"}),
	)
	type entry struct {
		key string
		v   float64
	}
	var rows []entry
	if b != nil {
		for k, row := range b.QTable {
			r := qlearn.Row(row)
			rows = append(rows, entry{k, r.Max()})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].v != rows[j].v {
			return rows[i].v > rows[j].v
		}
		return rows[i].key < rows[j].key
	})
	names := make([]string, len(rows))
	items := make([]opts.BarData, len(rows))
	for i, e := range rows {
		names[i] = e.key
		items[i] = opts.BarData{Value: e.v}
	}
	bar.SetXAxis(names).AddSeries("max Q", items)
	return bar
}

// ActionCounts tallies imitation-policy states by chosen action.
func ActionCounts(b *artifact.Bundle) map[trajectory.Action]int {
	counts := make(map[trajectory.Action]int, len(trajectory.Actions))
	if b == nil {
		return counts
	}
	for _, a := range b.ILPolicy {
		act := trajectory.Action(a)
		if act.Valid() {
			counts[act]++
		}
	}
	return counts
}

// #endregion html
