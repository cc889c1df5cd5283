package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/danielpatrickdp/demoai/go-trainer/internal/pipeline"

var (
	transitionsCounter metric.Int64Counter
	skippedCounter     metric.Int64Counter
	metricsOnce        sync.Once
	metricsRegistered  bool
)

// initMetrics binds the counters to whichever meter provider is global when
// they are first used; call Setup before recording to export them.
func initMetrics() {
	meter := otel.Meter(meterName)
	var err error
	transitionsCounter, err = meter.Int64Counter(
		"demoai.transitions.loaded",
		metric.WithDescription("Transitions built from demonstration logs"),
	)
	if err != nil {
		return
	}
	skippedCounter, err = meter.Int64Counter(
		"demoai.files.skipped",
		metric.WithDescription("Log files skipped for schema or parse errors"),
	)
	if err != nil {
		return
	}
	metricsRegistered = true
}

// RecordLoad records the outcome of the load stage.
func RecordLoad(ctx context.Context, transitions, skipped int, logDir string) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	attrs := metric.WithAttributes(attribute.String("log_dir", logDir))
	transitionsCounter.Add(ctx, int64(transitions), attrs)
	skippedCounter.Add(ctx, int64(skipped), attrs)
}
