package xrotate

import (
	"fmt"
	"os"
	"time"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
	"github.com/omeyang/xlogkit/pkg/logging/xpolicy"
	"github.com/omeyang/xlogkit/pkg/observability/xmetrics"
)

const (
	// DefaultFileMode 默认日志文件权限
	DefaultFileMode os.FileMode = 0o600

	// DefaultOpenAttempts 轮转后打开新文件的默认尝试次数
	DefaultOpenAttempts = 3

	// maxSizeBytes 单个日志文件大小上限（10 GiB）
	maxSizeBytes int64 = 10 << 30

	// maxBackups 备份文件数量上限
	maxBackups = 1024

	// maxAgeDays 备份保留天数上限（约 10 年）
	maxAgeDays = 3650

	// openRetryDelay 打开重试间隔
	openRetryDelay = 10 * time.Millisecond

	// drainRetryInterval 写入出错后重试排空的最小间隔
	drainRetryInterval = 100 * time.Millisecond
)

// Config 轮转配置
//
// 构造后不可变。RollingWriter 与 lumberjack 实现共用同一组 Option，
// 各自忽略不适用的字段（见字段说明）。
type Config struct {
	// MaxSize 单个日志文件最大字节数，0 表示不限制
	// lumberjack 以 MB 为单位向上取整
	MaxSize int64

	// MaxBackups 保留的备份数量
	// RollingWriter 将 0 规范化为 1；lumberjack 中 0 表示不限制数量
	MaxBackups int

	// MaxAgeDays 备份保留天数，仅 lumberjack 使用
	MaxAgeDays int

	// DatePattern 日期轮转粒度（daily/hourly/yyyy-MM-dd/Go 布局），空表示不按日期轮转
	// 仅 RollingWriter 使用
	DatePattern string

	// Compress 是否 gzip 压缩备份
	Compress bool

	// KeepFileExt 备份保留原扩展名：app.1.log 而非 app.log.1
	KeepFileExt bool

	// AlwaysIncludePattern 活动文件名也带日期：app.log-2024-03-09
	// 要求配置 DatePattern
	AlwaysIncludePattern bool

	// LocalTime 日期格式化是否使用本地时间（false 使用 UTC）
	LocalTime bool

	// FileMode 日志文件权限，0 表示 DefaultFileMode
	FileMode os.FileMode

	// OpenAttempts 轮转后打开新文件的尝试次数，0 表示 DefaultOpenAttempts
	OpenAttempts int

	// Diag 诊断通道，nil 时输出到 stderr
	Diag *xdiag.Channel

	// Recorder 指标记录，nil 时不记录
	Recorder xmetrics.Recorder

	// Policy 自定义轮转策略，非 nil 时替代由 MaxSize/DatePattern 构造的策略
	Policy xpolicy.Policy

	// OnError 内部错误回调（仅 lumberjack；RollingWriter 通过 Diag 上报）
	OnError func(error)

	// Clock 时间源，nil 时使用 time.Now
	Clock func() time.Time
}

// Option 配置选项函数
type Option func(*Config)

// WithMaxSize 设置单个日志文件最大字节数
func WithMaxSize(bytes int64) Option {
	return func(c *Config) {
		c.MaxSize = bytes
	}
}

// WithMaxBackups 设置保留的备份文件数量
func WithMaxBackups(n int) Option {
	return func(c *Config) {
		c.MaxBackups = n
	}
}

// WithMaxAge 设置保留备份的天数（lumberjack）
func WithMaxAge(days int) Option {
	return func(c *Config) {
		c.MaxAgeDays = days
	}
}

// WithDatePattern 设置日期轮转粒度
func WithDatePattern(pattern string) Option {
	return func(c *Config) {
		c.DatePattern = pattern
	}
}

// WithCompress 设置是否压缩备份文件
func WithCompress(compress bool) Option {
	return func(c *Config) {
		c.Compress = compress
	}
}

// WithKeepFileExt 设置备份是否保留原扩展名
func WithKeepFileExt(keep bool) Option {
	return func(c *Config) {
		c.KeepFileExt = keep
	}
}

// WithAlwaysIncludePattern 设置活动文件名是否带日期
func WithAlwaysIncludePattern(always bool) Option {
	return func(c *Config) {
		c.AlwaysIncludePattern = always
	}
}

// WithLocalTime 设置日期是否使用本地时间
func WithLocalTime(local bool) Option {
	return func(c *Config) {
		c.LocalTime = local
	}
}

// WithFileMode 设置日志文件权限
func WithFileMode(mode os.FileMode) Option {
	return func(c *Config) {
		c.FileMode = mode
	}
}

// WithOpenAttempts 设置轮转后打开新文件的尝试次数
func WithOpenAttempts(n int) Option {
	return func(c *Config) {
		c.OpenAttempts = n
	}
}

// WithDiag 设置诊断通道
//
// 设计决策: 不向日志本身记录内部错误，避免写入器作为日志输出目标时
// 产生递归写入（写失败 → 打日志 → 再写失败）。
func WithDiag(ch *xdiag.Channel) Option {
	return func(c *Config) {
		c.Diag = ch
	}
}

// WithRecorder 设置指标记录
func WithRecorder(r xmetrics.Recorder) Option {
	return func(c *Config) {
		c.Recorder = r
	}
}

// WithPolicy 设置自定义轮转策略
func WithPolicy(p xpolicy.Policy) Option {
	return func(c *Config) {
		c.Policy = p
	}
}

// WithOnError 设置错误回调函数（lumberjack）
//
// 回调函数不得向同一 Rotator 写入数据。
func WithOnError(fn func(error)) Option {
	return func(c *Config) {
		c.OnError = fn
	}
}

// WithClock 设置时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Clock = now
	}
}

func applyOptions(cfg *Config, opts []Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
}

// validateRolling 校验并规范化 RollingWriter 配置，返回解析后的日期模式
func validateRolling(cfg *Config) (xpolicy.DatePattern, error) {
	if cfg.MaxSize < 0 || cfg.MaxSize > maxSizeBytes {
		return xpolicy.DatePattern{}, fmt.Errorf("%w: got %d, want 0~%d", ErrInvalidMaxSize, cfg.MaxSize, maxSizeBytes)
	}
	if cfg.MaxBackups < 0 || cfg.MaxBackups > maxBackups {
		return xpolicy.DatePattern{}, fmt.Errorf("%w: got %d, want 0~%d", ErrInvalidMaxBackups, cfg.MaxBackups, maxBackups)
	}
	if err := validateFileMode(cfg.FileMode); err != nil {
		return xpolicy.DatePattern{}, err
	}

	var pattern xpolicy.DatePattern
	if cfg.DatePattern != "" {
		p, err := xpolicy.ParseDatePattern(cfg.DatePattern)
		if err != nil {
			return xpolicy.DatePattern{}, fmt.Errorf("%w: %w", ErrInvalidDatePattern, err)
		}
		pattern = p
	}
	if cfg.AlwaysIncludePattern && pattern.IsZero() {
		return xpolicy.DatePattern{}, fmt.Errorf("%w: AlwaysIncludePattern requires DatePattern", ErrInvalidDatePattern)
	}

	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 1
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = DefaultFileMode
	}
	if cfg.OpenAttempts <= 0 {
		cfg.OpenAttempts = DefaultOpenAttempts
	}
	return pattern, nil
}

// validateFileMode FileMode 仅允许权限位（低 9 位），拒绝文件类型位、setuid/setgid 等
func validateFileMode(mode os.FileMode) error {
	if mode != 0 && mode&^os.FileMode(0o777) != 0 {
		return fmt.Errorf("%w: got %04o, only permission bits (0000~0777) allowed",
			ErrInvalidFileMode, mode)
	}
	return nil
}

// buildPolicy 由配置构造策略：大小优先于日期
func buildPolicy(cfg *Config, pattern xpolicy.DatePattern) xpolicy.Policy {
	if cfg.Policy != nil {
		return cfg.Policy
	}
	var ps []xpolicy.Policy
	if cfg.MaxSize > 0 {
		ps = append(ps, xpolicy.Size(cfg.MaxSize))
	}
	if !pattern.IsZero() {
		ps = append(ps, xpolicy.Date(pattern))
	}
	return xpolicy.Any(ps...)
}
