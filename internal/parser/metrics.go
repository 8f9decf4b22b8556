package parser

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("svdoc.parser")
	meter  = otel.Meter("svdoc.parser")
)

var (
	parseLatency metric.Float64Histogram
	parseTotal   metric.Int64Counter
	parseItems   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"svdoc_parse_duration_seconds",
			metric.WithDescription("Duration of SystemVerilog parse operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"svdoc_parse_total",
			metric.WithDescription("Total number of SystemVerilog parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseItems, err = meter.Int64Histogram(
			"svdoc_parse_items",
			metric.WithDescription("Number of top-level items per parsed file"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startParseSpan(ctx context.Context, backend Backend, path string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Parser.Parse",
		trace.WithAttributes(
			attribute.String("svdoc.backend", string(backend)),
			attribute.String("svdoc.file", path),
			attribute.Int("svdoc.content_size", size),
		),
	)
}

func setParseSpanResult(span trace.Span, items int, success bool) {
	span.SetAttributes(
		attribute.Int("svdoc.item_count", items),
		attribute.Bool("svdoc.success", success),
	)
}

func recordParseMetrics(ctx context.Context, backend Backend, duration time.Duration, items int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("backend", string(backend)),
		attribute.Bool("success", success),
	)
	parseLatency.Record(ctx, duration.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)
	if success {
		parseItems.Record(ctx, int64(items), metric.WithAttributes(attribute.String("backend", string(backend))))
	}
}
