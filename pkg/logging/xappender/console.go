package xappender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
	"github.com/omeyang/xlogkit/pkg/logging/xevent"
	"github.com/omeyang/xlogkit/pkg/logging/xlayout"
	"github.com/omeyang/xlogkit/pkg/logging/xsink"
)

// ConsoleAppender 输出到标准输出或标准错误
//
// type 为 stderr 时写 stderr，否则写 stdout；标准流不会被关闭。
type ConsoleAppender struct {
	target string
	layout xlayout.Layout
	sink   *xsink.Sink
	diag   *xdiag.Channel

	stopped atomic.Bool
	done    chan struct{}
	result  atomic.Pointer[error]
}

var (
	_ Appender = (*ConsoleAppender)(nil)
	_ Closer   = (*ConsoleAppender)(nil)
)

// NewConsoleAppender 创建控制台输出端
func NewConsoleAppender(opts Options, deps Deps) (*ConsoleAppender, error) {
	if err := checkEncoding(opts.Encoding); err != nil {
		return nil, err
	}
	layout, err := xlayout.ByName(opts.Layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	diag := deps.diag()

	target, w := TypeStdout, deps.stdout()
	if strings.EqualFold(opts.Type, TypeStderr) {
		target, w = TypeStderr, deps.stderr()
	}
	a := &ConsoleAppender{
		target: target,
		layout: layout,
		diag:   diag,
		done:   make(chan struct{}),
	}
	a.sink = xsink.New(xsink.WriterHandle(w),
		xsink.WithReady(true),
		xsink.WithOnError(func(err error) { diag.Error("console write failed", err, xdiag.Path(target)) }))
	return a, nil
}

// Write 渲染并写入一行
func (a *ConsoleAppender) Write(e xevent.Event) {
	if a.stopped.Load() {
		return
	}
	defer guard(a.diag, a.target)

	line, ok := render(a.layout, e, a.diag, a.target)
	if !ok {
		return
	}
	_, _ = a.sink.Write(line)
}

// Shutdown 刷出剩余数据并回调
func (a *ConsoleAppender) Shutdown(done func(error)) {
	shutdownWith(a, done)
}

// CloseContext 刷出剩余数据，重复调用返回 nil
func (a *ConsoleAppender) CloseContext(ctx context.Context) error {
	if a.stopped.Swap(true) {
		return nil
	}
	a.sink.Close(true, func(err error) {
		a.result.Store(&err)
		close(a.done)
	})
	select {
	case <-a.done:
		if p := a.result.Load(); p != nil && !errors.Is(*p, xsink.ErrClosed) {
			return *p
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("xappender: close %s: %w", a.target, ctx.Err())
	}
}
