package xrotate

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Lumberjack 默认配置值
const (
	// DefaultLumberjackMaxSize 默认单个日志文件最大大小（500 MiB）
	DefaultLumberjackMaxSize int64 = 500 << 20

	// DefaultLumberjackMaxBackups 默认保留的备份文件数量
	DefaultLumberjackMaxBackups = 7

	// DefaultLumberjackMaxAgeDays 默认保留备份的天数
	DefaultLumberjackMaxAgeDays = 30

	mib = 1 << 20
)

// lumberjackRotator 基于 lumberjack 的 Rotator 实现
//
// 备份文件名带时间戳（app-2024-03-09T10-00-00.000.log），
// 适用于不要求数字编号备份的场景。按大小轮转，按数量和天数清理。
type lumberjackRotator struct {
	logger   *lumberjack.Logger
	path     string
	fileMode os.FileMode
	onError  func(error)
	mu       sync.Mutex

	closed atomic.Bool

	// 设计决策: 使用累计写入字节数检测自动轮转，避免每次 Write 都执行 os.Stat。
	modeApplied  atomic.Bool
	maxSizeBytes int64
	bytesWritten atomic.Int64
}

// NewLumberjack 创建基于 lumberjack 的日志轮转器
//
// 与 [New] 共用 Option。MaxSize 以 MB 向上取整；DatePattern、KeepFileExt、
// AlwaysIncludePattern 不适用，会被忽略。
func NewLumberjack(filename string, opts ...Option) (Rotator, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}

	cfg := Config{
		MaxSize:    DefaultLumberjackMaxSize,
		MaxBackups: DefaultLumberjackMaxBackups,
		MaxAgeDays: DefaultLumberjackMaxAgeDays,
		Compress:   true,
	}
	applyOptions(&cfg, opts)

	sizeMB, err := validateLumberjack(&cfg)
	if err != nil {
		return nil, err
	}

	safePath, err := sanitizePath(filename)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(safePath); err != nil {
		return nil, err
	}

	onError := cfg.OnError
	if onError == nil && cfg.Diag != nil {
		onError = func(err error) { cfg.Diag.Error("lumberjack internal error", err) }
	}

	return &lumberjackRotator{
		logger: &lumberjack.Logger{
			Filename:   safePath,
			MaxSize:    sizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		},
		path:         safePath,
		fileMode:     cfg.FileMode,
		onError:      onError,
		maxSizeBytes: int64(sizeMB) * mib,
	}, nil
}

// validateLumberjack 校验配置并返回以 MB 计的大小上限
func validateLumberjack(cfg *Config) (int, error) {
	if cfg.MaxSize <= 0 || cfg.MaxSize > maxSizeBytes {
		return 0, fmt.Errorf("%w: got %d, want 1~%d", ErrInvalidMaxSize, cfg.MaxSize, maxSizeBytes)
	}
	if cfg.MaxBackups < 0 || cfg.MaxBackups > maxBackups {
		return 0, fmt.Errorf("%w: got %d, want 0~%d", ErrInvalidMaxBackups, cfg.MaxBackups, maxBackups)
	}
	if cfg.MaxAgeDays < 0 || cfg.MaxAgeDays > maxAgeDays {
		return 0, fmt.Errorf("%w: got %d, want 0~%d", ErrInvalidMaxAge, cfg.MaxAgeDays, maxAgeDays)
	}
	if cfg.MaxBackups == 0 && cfg.MaxAgeDays == 0 {
		return 0, fmt.Errorf("%w: MaxBackups and MaxAgeDays cannot both be 0", ErrNoCleanupPolicy)
	}
	if err := validateFileMode(cfg.FileMode); err != nil {
		return 0, err
	}
	return int((cfg.MaxSize + mib - 1) / mib), nil
}

// Write 实现 io.Writer 接口
func (r *lumberjackRotator) Write(p []byte) (n int, err error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}

	n, err = r.logger.Write(p)
	if err != nil {
		// Write 与 Close 存在 TOCTOU 窗口，关闭后统一返回 ErrClosed
		if r.closed.Load() {
			return n, ErrClosed
		}
		return n, err
	}

	// 权限调整是尽力而为，不影响日志写入的返回值
	if r.fileMode != 0 {
		needCheck := !r.modeApplied.Load()
		if !needCheck && r.bytesWritten.Add(int64(n)) >= r.maxSizeBytes {
			needCheck = true
		}
		if needCheck {
			r.reportError(r.ensureFileMode())
		}
	}
	return n, nil
}

// ensureFileMode 确保日志文件具有期望的权限
func (r *lumberjackRotator) ensureFileMode() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := os.Stat(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode().Perm() != r.fileMode {
		//#nosec G302 -- 日志文件权限由调用方配置决定
		if err := os.Chmod(r.path, r.fileMode); err != nil {
			return err
		}
	}
	r.modeApplied.Store(true)
	r.bytesWritten.Store(0)
	return nil
}

// reportError 通过回调上报内部错误，回调 panic 被隔离
func (r *lumberjackRotator) reportError(err error) {
	if err != nil && r.onError != nil {
		defer func() { recover() }() //nolint:errcheck // recover 返回值无需检查
		r.onError(err)
	}
}

// Close 实现 io.Closer 接口，重复调用返回 [ErrClosed]
func (r *lumberjackRotator) Close() error {
	if r.closed.Swap(true) {
		return ErrClosed
	}
	return r.logger.Close()
}

// Rotate 手动触发轮转
func (r *lumberjackRotator) Rotate() error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.logger.Rotate(); err != nil {
		if r.closed.Load() {
			return ErrClosed
		}
		return err
	}
	if r.fileMode != 0 {
		r.modeApplied.Store(false)
		r.bytesWritten.Store(0)
		r.reportError(r.ensureFileMode())
	}
	return nil
}
