package xregistry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tebeka/atexit"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
)

// DefaultExitTimeout 退出钩子等待所有写入器关闭的时间
const DefaultExitTimeout = 5 * time.Second

// Closer 可注册的写入器
type Closer interface {
	CloseContext(ctx context.Context) error
}

// Reopener 可选：支持重新打开活动文件
type Reopener interface {
	Reopen() error
}

// Rotator 可选：支持手动轮转
type Rotator interface {
	Rotate() error
}

// HookInstaller 安装进程退出钩子
//
// 默认使用 atexit.Register：钩子在 atexit.Exit 时执行。
type HookInstaller func(fn func())

// Option 注册表选项
type Option func(*Registry)

// WithHookInstaller 替换退出钩子安装方式（测试或自定义退出流程）
func WithHookInstaller(h HookInstaller) Option {
	return func(r *Registry) {
		if h != nil {
			r.install = h
		}
	}
}

// WithExitTimeout 设置退出钩子关闭写入器的期限
func WithExitTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.exitTimeout = d
		}
	}
}

// WithDiag 设置诊断通道
func WithDiag(ch *xdiag.Channel) Option {
	return func(r *Registry) {
		if ch != nil {
			r.diag = ch
		}
	}
}

type entry struct {
	path   string
	closer Closer
}

// Registry 进程级写入器注册表
//
// 每个路径同一时刻只允许一个写入器；首次注册时安装唯一的退出钩子，
// 退出时并发关闭所有已注册写入器。
type Registry struct {
	install     HookInstaller
	exitTimeout time.Duration
	diag        *xdiag.Channel

	mu      sync.Mutex
	entries map[string]*entry
	hooked  bool
	hooks   int
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default 进程级共享注册表
//
// 未显式指定注册表的门面都使用它，同一进程内只安装一个 atexit 退出钩子。
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = New() })
	return defaultReg
}

// New 创建注册表
func New(opts ...Option) *Registry {
	r := &Registry{
		install:     func(fn func()) { atexit.Register(fn) },
		exitTimeout: DefaultExitTimeout,
		entries:     make(map[string]*entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.diag == nil {
		r.diag = xdiag.New()
	}
	return r
}

// Register 独占注册路径
//
// 路径已占用返回 [ErrPathInUse]。返回的 release 释放占用，可多次调用。
func (r *Registry) Register(path string, c Closer) (release func(), err error) {
	if c == nil {
		return nil, ErrNilCloser
	}
	if path == "" {
		return nil, ErrEmptyPath
	}
	key := canonical(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPathInUse, path)
	}
	e := &entry{path: key, closer: c}
	r.entries[key] = e
	if !r.hooked {
		r.hooked = true
		r.hooks++
		r.install(r.exitHook)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(e) })
	}, nil
}

func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[e.path] == e {
		delete(r.entries, e.path)
	}
}

// Hooks 已安装的退出钩子数量（0 或 1）
func (r *Registry) Hooks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hooks
}

// Len 已注册写入器数量
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Paths 已注册路径快照
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for p := range r.entries {
		out = append(out, p)
	}
	return out
}

func (r *Registry) snapshot() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Shutdown 并发关闭所有已注册写入器
//
// 返回各写入器错误的合并。ctx 结束时立即返回 [ErrShutdownPending]，
// 未完成的关闭在后台继续。
func (r *Registry) Shutdown(ctx context.Context) error {
	entries := r.snapshot()
	errs := make([]error, len(entries))

	var g errgroup.Group
	for i, e := range entries {
		g.Go(func() error {
			if err := e.closer.CloseContext(ctx); err != nil {
				errs[i] = fmt.Errorf("close %s: %w", e.path, err)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return errors.Join(errs...)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownPending, ctx.Err())
	}
}

// Reopen 重新打开所有支持 [Reopener] 的写入器（SIGHUP）
func (r *Registry) Reopen() error {
	var errs []error
	for _, e := range r.snapshot() {
		if ro, ok := e.closer.(Reopener); ok {
			if err := ro.Reopen(); err != nil {
				errs = append(errs, fmt.Errorf("reopen %s: %w", e.path, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Rotate 手动轮转所有支持 [Rotator] 的写入器
func (r *Registry) Rotate() error {
	var errs []error
	for _, e := range r.snapshot() {
		if ro, ok := e.closer.(Rotator); ok {
			if err := ro.Rotate(); err != nil {
				errs = append(errs, fmt.Errorf("rotate %s: %w", e.path, err))
			}
		}
	}
	return errors.Join(errs...)
}

// exitHook 进程退出时关闭所有写入器
func (r *Registry) exitHook() {
	ctx, cancel := context.WithTimeout(context.Background(), r.exitTimeout)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		r.diag.Error("shutdown on exit", err)
	}
}

// canonical 规范化路径：绝对路径失败时退回 Clean
func canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
