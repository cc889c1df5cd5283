package eval

// #region eval-config
// EvalConfig holds the tolerances used when validating exported artifacts.
type EvalConfig struct {
	ProbTolerance  float64 // max |sum - 1| for a behavior-cloning row
	MaxDangerZones int     // reject if more danger zones were exported
	MaxAbsQ        float64 // reject if any Q value exceeds this magnitude (0 = disabled)
}

// DefaultEvalConfig returns the validation defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		ProbTolerance:  1e-3,
		MaxDangerZones: 10,
		MaxAbsQ:        0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the outcome of validating one artifact bundle.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Metric returns the named metric.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
