package indexer

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
	tracer = otel.Tracer("svdoc.indexer")
	meter  = otel.Meter("svdoc.indexer")
)

var (
	runLatency metric.Float64Histogram
	fileTotal  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"svdoc_index_duration_seconds",
			metric.WithDescription("Duration of full indexing runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fileTotal, err = meter.Int64Counter(
			"svdoc_index_files_total",
			metric.WithDescription("Files processed by the indexer, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startRunSpan(ctx context.Context, rootPath string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Indexer.Run",
		trace.WithAttributes(attribute.String("svdoc.root", rootPath)),
	)
}

func setRunSpanResult(span trace.Span, stats Stats) {
	span.SetAttributes(
		attribute.Int("svdoc.files", stats.Files),
		attribute.Int("svdoc.parsed", stats.Parsed),
		attribute.Int("svdoc.cache_hits", stats.CacheHits),
		attribute.Int("svdoc.failed", stats.Failed),
	)
}

func recordRunMetrics(ctx context.Context, duration time.Duration, stats Stats) {
	if err := initMetrics(); err != nil {
		return
	}
	runLatency.Record(ctx, duration.Seconds())
	for status, n := range map[string]int{
		statusParsed:   stats.Parsed,
		statusCacheHit: stats.CacheHits,
		statusFailed:   stats.Failed,
		statusSkipped:  stats.Skipped,
	} {
		if n > 0 {
			fileTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("status", status)))
		}
	}
}
