package xdiag

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// 默认限流：每秒 5 条，突发 20 条
const (
	defaultRate  = rate.Limit(5)
	defaultBurst = 20
)

// Option 诊断通道配置选项
type Option func(*Channel)

// WithWriter 设置输出目标（默认 os.Stderr）
//
// 不要把写入器指向任何 appender，否则会形成反馈回路。
func WithWriter(w io.Writer) Option {
	return func(c *Channel) {
		if w != nil {
			c.w = w
		}
	}
}

// WithRate 设置限流参数，limit 为 rate.Inf 时不限流
func WithRate(limit rate.Limit, burst int) Option {
	return func(c *Channel) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithOnError 设置错误回调，每个上报的 error 都会触发（不受限流影响）
func WithOnError(fn func(error)) Option {
	return func(c *Channel) {
		c.onError = fn
	}
}

// WithLevel 设置最低输出级别（默认 Info）
func WithLevel(level slog.Level) Option {
	return func(c *Channel) {
		c.level = level
	}
}

// Channel 诊断通道
//
// 供日志组件自身上报内部故障（重命名失败、压缩失败、格式化失败等）。
// 通道是低流量、非递归的：输出走独立的 slog 文本处理器，受令牌桶限流，
// 被限流的条数在下一条放行的消息上以 suppressed 属性报告。
// nil *Channel 可安全使用，所有方法为空操作。
type Channel struct {
	w       io.Writer
	level   slog.Level
	limiter *rate.Limiter
	onError func(error)
	logger  *slog.Logger

	errorCount atomic.Int64
	suppressed atomic.Int64
	inCallback atomic.Bool
	mu         sync.Mutex
}

// New 创建诊断通道
func New(opts ...Option) *Channel {
	c := &Channel{
		w:       os.Stderr,
		level:   slog.LevelInfo,
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = slog.New(slog.NewTextHandler(&lockedWriter{w: c.w, mu: &c.mu}, &slog.HandlerOptions{
		Level: c.level,
	})).With(slog.String("component", "xlogkit"))
	return c
}

// Discard 返回丢弃所有输出的通道，错误计数仍然生效
func Discard() *Channel {
	return New(WithWriter(io.Discard), WithRate(rate.Inf, 0))
}

// Info 上报信息
func (c *Channel) Info(msg string, attrs ...slog.Attr) {
	c.emit(slog.LevelInfo, msg, attrs)
}

// Warn 上报警告
func (c *Channel) Warn(msg string, attrs ...slog.Attr) {
	c.emit(slog.LevelWarn, msg, attrs)
}

// Error 上报错误：计数、回调，再限流输出
func (c *Channel) Error(msg string, err error, attrs ...slog.Attr) {
	if c == nil {
		return
	}
	c.errorCount.Add(1)
	if err != nil {
		c.callback(err)
		attrs = append(attrs, slog.Any("error", err))
	}
	c.emit(slog.LevelError, msg, attrs)
}

// Errors 累计上报的错误数
func (c *Channel) Errors() int64 {
	if c == nil {
		return 0
	}
	return c.errorCount.Load()
}

// Suppressed 当前尚未报告的被限流条数
func (c *Channel) Suppressed() int64 {
	if c == nil {
		return 0
	}
	return c.suppressed.Load()
}

func (c *Channel) emit(level slog.Level, msg string, attrs []slog.Attr) {
	if c == nil {
		return
	}
	ctx := context.Background()
	if !c.logger.Enabled(ctx, level) {
		return
	}
	if !c.limiter.Allow() {
		c.suppressed.Add(1)
		return
	}
	if n := c.suppressed.Swap(0); n > 0 {
		attrs = append(attrs, slog.Int64("suppressed", n))
	}
	c.logger.LogAttrs(ctx, level, msg, attrs...)
}

// callback 执行错误回调，带递归保护和 panic 隔离
func (c *Channel) callback(err error) {
	if c.onError == nil {
		return
	}
	if !c.inCallback.CompareAndSwap(false, true) {
		return
	}
	defer c.inCallback.Store(false)
	defer func() { recover() }() //nolint:errcheck // recover 返回值无需检查
	c.onError(err)
}

// Bytes 以人类可读格式输出字节数（如 "1.5 MiB"）
func Bytes(key string, n int64) slog.Attr {
	if n < 0 {
		return slog.Int64(key, n)
	}
	return slog.String(key, humanize.IBytes(uint64(n)))
}

// Path 文件路径属性
func Path(p string) slog.Attr {
	return slog.String("path", p)
}

// Duration 耗时属性
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("elapsed", d)
}

// lockedWriter 串行化底层写入
type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
