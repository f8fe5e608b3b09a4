package xmetrics

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xlogkit/xmetrics"

	metricWriteBytes       = "xlogkit.write.bytes"
	metricRotationTotal    = "xlogkit.rotation.total"
	metricRotationDuration = "xlogkit.rotation.duration"
	metricCompressionTotal = "xlogkit.compression.total"
	metricCompressionRatio = "xlogkit.compression.ratio"
	metricLostTotal        = "xlogkit.lost.total"
)

type otelConfig struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
	fullPath            bool
}

// Option 定义 OTel Recorder 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithFullPath 属性中使用完整路径（默认只用文件名，控制基数）。
func WithFullPath(full bool) Option {
	return func(cfg *otelConfig) {
		cfg.fullPath = full
	}
}

// NewOTelRecorder 创建基于 OpenTelemetry 的 Recorder。
func NewOTelRecorder(opts ...Option) (Recorder, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(cfg)
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)
	r := &otelRecorder{fullPath: cfg.fullPath}

	var err error
	if r.written, err = meter.Int64Counter(metricWriteBytes,
		metric.WithDescription("bytes accepted by rolling writers"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	if r.rotations, err = meter.Int64Counter(metricRotationTotal,
		metric.WithDescription("log file rotations"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	if r.rotationDuration, err = meter.Float64Histogram(metricRotationDuration,
		metric.WithDescription("rotation duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}
	if r.compressions, err = meter.Int64Counter(metricCompressionTotal,
		metric.WithDescription("backup compressions"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	if r.ratio, err = meter.Float64Histogram(metricCompressionRatio,
		metric.WithDescription("compressed size / original size"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}
	if r.lost, err = meter.Int64Counter(metricLostTotal,
		metric.WithDescription("entries lost when a writer degraded"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	return r, nil
}

type otelRecorder struct {
	fullPath         bool
	written          metric.Int64Counter
	rotations        metric.Int64Counter
	rotationDuration metric.Float64Histogram
	compressions     metric.Int64Counter
	ratio            metric.Float64Histogram
	lost             metric.Int64Counter
}

func (r *otelRecorder) fileAttr(file string) attribute.KeyValue {
	if !r.fullPath {
		file = filepath.Base(file)
	}
	return attribute.String("file", file)
}

// RecordWrite 实现 Recorder
func (r *otelRecorder) RecordWrite(ctx context.Context, file string, bytes int) {
	r.written.Add(ctx, int64(bytes), metric.WithAttributes(r.fileAttr(file)))
}

// RecordRotation 实现 Recorder
func (r *otelRecorder) RecordRotation(ctx context.Context, file, reason string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		r.fileAttr(file),
		attribute.String("reason", reason),
		attribute.String("status", statusOf(err)),
	)
	r.rotations.Add(ctx, 1, attrs)
	r.rotationDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordCompression 实现 Recorder
func (r *otelRecorder) RecordCompression(ctx context.Context, file string, before, after int64, err error) {
	attrs := metric.WithAttributes(r.fileAttr(file), attribute.String("status", statusOf(err)))
	r.compressions.Add(ctx, 1, attrs)
	if err == nil && before > 0 {
		r.ratio.Record(ctx, float64(after)/float64(before), metric.WithAttributes(r.fileAttr(file)))
	}
}

// RecordLost 实现 Recorder
func (r *otelRecorder) RecordLost(ctx context.Context, file string, entries int) {
	r.lost.Add(ctx, int64(entries), metric.WithAttributes(r.fileAttr(file)))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
