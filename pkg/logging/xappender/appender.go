package xappender

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
	"github.com/omeyang/xlogkit/pkg/logging/xevent"
	"github.com/omeyang/xlogkit/pkg/logging/xlayout"
	"github.com/omeyang/xlogkit/pkg/logging/xregistry"
	"github.com/omeyang/xlogkit/pkg/observability/xmetrics"
)

// Appender 日志输出端
//
// Write 永不返回错误也不 panic：失败经诊断通道上报，单条事件被丢弃。
// Shutdown 幂等：每次调用恰好回调一次，重复调用立即回调 nil。
type Appender interface {
	Write(e xevent.Event)
	Shutdown(done func(error))
}

// Closer 支持带期限关闭的输出端，供注册表与日志门面统一关闭
type Closer interface {
	CloseContext(ctx context.Context) error
}

// Registrar 路径独占注册，见 xregistry.Registry
type Registrar interface {
	Register(path string, c xregistry.Closer) (release func(), err error)
}

// Deps 输出端依赖，零值可用
type Deps struct {
	// Diag 诊断通道，nil 时输出到 stderr
	Diag *xdiag.Channel

	// Recorder 指标记录
	Recorder xmetrics.Recorder

	// Registry 文件路径注册表，nil 时不注册（进程退出时不会自动关闭）
	Registry Registrar

	// Clock 时间源（测试用）
	Clock func() time.Time

	// Stdout/Stderr 控制台输出目标，nil 时为 os.Stdout/os.Stderr
	Stdout io.Writer
	Stderr io.Writer
}

func (d Deps) diag() *xdiag.Channel {
	if d.Diag == nil {
		return xdiag.New()
	}
	return d.Diag
}

func (d Deps) stdout() io.Writer {
	if d.Stdout == nil {
		return os.Stdout
	}
	return d.Stdout
}

func (d Deps) stderr() io.Writer {
	if d.Stderr == nil {
		return os.Stderr
	}
	return d.Stderr
}

// Configure 按配置创建输出端
//
// 配置错误在打开任何文件之前同步返回，错误包装 [ErrConfiguration]。
func Configure(opts Options, deps Deps) (Appender, error) {
	if err := checkEncoding(opts.Encoding); err != nil {
		return nil, err
	}
	if _, err := xlayout.ByName(opts.Layout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	deps.Diag = deps.diag()

	switch opts.kind() {
	case "file", "datefile", "lumberjack":
		return NewFileAppender(opts, deps)
	case "multifile":
		return NewMultiFileAppender(opts, deps)
	case "console", "stdout", "stderr":
		return NewConsoleAppender(opts, deps)
	default:
		return nil, fmt.Errorf("%w: unknown appender type %q", ErrConfiguration, opts.Type)
	}
}

// render 渲染一行（含行终止符），布局失败时上报并返回 false
func render(layout xlayout.Layout, e xevent.Event, diag *xdiag.Channel, target string) ([]byte, bool) {
	line, err := xlayout.Render(layout, e)
	if err != nil {
		diag.Error("drop event: layout failed", err, xdiag.Path(target))
		return nil, false
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	return append(buf, '\n'), true
}

// guard 隔离 Write 中的 panic
func guard(diag *xdiag.Channel, target string) {
	if r := recover(); r != nil {
		diag.Error("drop event: appender panic", fmt.Errorf("%v", r), xdiag.Path(target))
	}
}

// shutdownWith 以 CloseContext 实现 Shutdown
func shutdownWith(c Closer, done func(error)) {
	err := c.CloseContext(context.Background())
	if done != nil {
		done(err)
	}
}
