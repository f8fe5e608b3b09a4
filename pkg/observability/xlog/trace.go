package xlog

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// 追踪字段 Key
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"
)

// TraceExtractor 从 context 中的 OpenTelemetry span 提取 trace_id/span_id
//
//	xlog.New().SetEnrich(xlog.TraceExtractor)
func TraceExtractor(ctx context.Context) []slog.Attr {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []slog.Attr{
		slog.String(KeyTraceID, sc.TraceID().String()),
		slog.String(KeySpanID, sc.SpanID().String()),
	}
}

// ChainExtractors 依次调用多个提取函数，合并结果，nil 项被跳过
func ChainExtractors(fns ...ContextExtractor) ContextExtractor {
	return func(ctx context.Context) []slog.Attr {
		var out []slog.Attr
		for _, fn := range fns {
			if fn != nil {
				out = append(out, fn(ctx)...)
			}
		}
		return out
	}
}
