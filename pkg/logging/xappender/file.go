package xappender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
	"github.com/omeyang/xlogkit/pkg/logging/xevent"
	"github.com/omeyang/xlogkit/pkg/logging/xlayout"
	"github.com/omeyang/xlogkit/pkg/logging/xrotate"
)

// FileAppender 写入单个滚动文件的输出端
//
// file 类型按大小（可叠加日期）轮转，dateFile 按日期轮转，
// lumberjack 使用时间戳命名的备份。
type FileAppender struct {
	filename string
	layout   xlayout.Layout
	w        xrotate.Rotator
	diag     *xdiag.Channel
	release  func()

	stopped atomic.Bool
	mu      sync.Mutex
	done    bool
}

var (
	_ Appender = (*FileAppender)(nil)
	_ Closer   = (*FileAppender)(nil)
)

// NewFileAppender 创建文件输出端
//
// 文件名缺失、大小或权限非法等配置错误返回 [ErrConfiguration]；
// 配置了 Registry 时独占注册文件路径。
func NewFileAppender(opts Options, deps Deps) (*FileAppender, error) {
	if strings.TrimSpace(opts.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrConfiguration)
	}
	if err := checkEncoding(opts.Encoding); err != nil {
		return nil, err
	}
	layout, err := xlayout.ByName(opts.Layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	size, err := ParseSize(opts.MaxLogSize)
	if err != nil {
		return nil, err
	}
	mode, err := parseMode(opts.Mode)
	if err != nil {
		return nil, err
	}
	diag := deps.diag()

	rotateOpts := []xrotate.Option{
		xrotate.WithMaxBackups(opts.backups()),
		xrotate.WithCompress(opts.Compress),
		xrotate.WithKeepFileExt(opts.KeepFileExt),
		xrotate.WithLocalTime(opts.LocalTime),
		xrotate.WithFileMode(mode),
		xrotate.WithDiag(diag),
		xrotate.WithRecorder(deps.Recorder),
	}
	if deps.Clock != nil {
		rotateOpts = append(rotateOpts, xrotate.WithClock(deps.Clock))
	}

	var w xrotate.Rotator
	switch opts.kind() {
	case "lumberjack":
		if size > 0 {
			rotateOpts = append(rotateOpts, xrotate.WithMaxSize(size))
		}
		rotateOpts = append(rotateOpts,
			xrotate.WithMaxAge(opts.DaysToKeep),
			xrotate.WithOnError(func(err error) { diag.Error("lumberjack", err, xdiag.Path(opts.Filename)) }))
		w, err = xrotate.NewLumberjack(opts.Filename, rotateOpts...)
	default:
		pattern := opts.Pattern
		if pattern == "" && opts.kind() == "datefile" {
			pattern = DefaultDatePattern
		}
		rotateOpts = append(rotateOpts,
			xrotate.WithMaxSize(size),
			xrotate.WithDatePattern(pattern),
			xrotate.WithAlwaysIncludePattern(opts.AlwaysIncludePattern))
		w, err = xrotate.New(opts.Filename, rotateOpts...)
	}
	if err != nil {
		if xrotate.IsConfigError(err) {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return nil, fmt.Errorf("xappender: open %s: %w", opts.Filename, err)
	}

	a := &FileAppender{
		filename: opts.Filename,
		layout:   layout,
		w:        w,
		diag:     diag,
	}
	if deps.Registry != nil {
		release, err := deps.Registry.Register(opts.Filename, a)
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("xappender: register %s: %w", opts.Filename, err)
		}
		a.release = release
	}
	return a, nil
}

// Write 渲染并写入一行，关闭后静默丢弃
func (a *FileAppender) Write(e xevent.Event) {
	if a.stopped.Load() {
		return
	}
	defer guard(a.diag, a.filename)

	line, ok := render(a.layout, e, a.diag, a.filename)
	if !ok {
		return
	}
	if _, err := a.w.Write(line); err != nil && !errors.Is(err, xrotate.ErrClosed) {
		a.diag.Error("write failed", err, xdiag.Path(a.filename))
	}
}

// Shutdown 关闭输出端并回调结果
func (a *FileAppender) Shutdown(done func(error)) {
	shutdownWith(a, done)
}

// CloseContext 关闭底层写入器
//
// 首次调用后不再接受写入。ctx 结束时返回 xrotate.ErrClosePending，可重试；
// 已关闭时立即返回 nil。
func (a *FileAppender) CloseContext(ctx context.Context) error {
	a.stopped.Store(true)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return nil
	}

	var err error
	if c, ok := a.w.(Closer); ok {
		err = c.CloseContext(ctx)
	} else {
		err = a.w.Close()
	}
	if errors.Is(err, xrotate.ErrClosePending) {
		return err
	}
	if errors.Is(err, xrotate.ErrClosed) {
		err = nil
	}
	a.done = true
	if a.release != nil {
		a.release()
	}
	return err
}

// Rotate 手动轮转
func (a *FileAppender) Rotate() error {
	return a.w.Rotate()
}

// Reopen 重新打开活动文件（支持时），用于外部 logrotate 搬走文件后
func (a *FileAppender) Reopen() error {
	if r, ok := a.w.(xrotate.Reopener); ok {
		return r.Reopen()
	}
	return a.w.Rotate()
}

// Filename 配置的文件路径
func (a *FileAppender) Filename() string {
	return a.filename
}
