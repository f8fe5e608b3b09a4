package xmetrics

import (
	"context"
	"time"
)

// Recorder 日志写入器的指标记录接口
//
// 所有方法必须并发安全且不阻塞；实现不得向日志写入（避免递归）。
type Recorder interface {
	// RecordWrite 记录一次写入的字节数
	RecordWrite(ctx context.Context, file string, bytes int)

	// RecordRotation 记录一次轮转，reason 为 size/date/manual
	RecordRotation(ctx context.Context, file, reason string, elapsed time.Duration, err error)

	// RecordCompression 记录一次备份压缩
	RecordCompression(ctx context.Context, file string, before, after int64, err error)

	// RecordLost 记录因写入器降级而丢失的条目数
	RecordLost(ctx context.Context, file string, entries int)
}

// NoopRecorder 空实现
type NoopRecorder struct{}

// RecordWrite 实现 Recorder
func (NoopRecorder) RecordWrite(context.Context, string, int) {}

// RecordRotation 实现 Recorder
func (NoopRecorder) RecordRotation(context.Context, string, string, time.Duration, error) {}

// RecordCompression 实现 Recorder
func (NoopRecorder) RecordCompression(context.Context, string, int64, int64, error) {}

// RecordLost 实现 Recorder
func (NoopRecorder) RecordLost(context.Context, string, int) {}

// OrNoop nil 时返回 NoopRecorder
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

var _ Recorder = NoopRecorder{}
