package xlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xlogkit/pkg/logging/xappender"
	"github.com/omeyang/xlogkit/pkg/logging/xevent"
	"github.com/omeyang/xlogkit/pkg/logging/xregistry"
)

// ContextExtractor 从 context 提取要注入每条日志的属性（trace_id 等）
//
// 提取的属性位于顶层，不受 WithGroup 影响。
type ContextExtractor func(ctx context.Context) []slog.Attr

// ReplaceAttrFunc 属性替换函数
//
// 用于日志治理：字段重命名、敏感信息脱敏、字段过滤。返回空 Key 的 Attr 移除该属性。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// route 分类解析结果
type route struct {
	level     Level
	appenders []xappender.Appender
	callStack bool
}

// state 一份配置对应的输出端集合
type state struct {
	cfg       Config
	appenders map[string]xappender.Appender
	routes    sync.Map // category → *route
}

// Facility 日志门面：持有输出端、分类配置与写入器注册表
//
// 由 [Builder.Build] 创建。Logger 按分类获取，事件分发到分类绑定的输出端。
type Facility struct {
	deps        xappender.Deps
	registry    *xregistry.Registry
	extract     ContextExtractor
	replaceAttr ReplaceAttrFunc
	addSource   bool
	onError     func(error)

	errorCount     atomic.Uint64
	inErrorHandler atomic.Bool

	mu        sync.RWMutex
	st        *state
	overrides map[string]Level
	closed    bool
}

func newState(cfg Config, deps xappender.Deps) (*state, error) {
	names := make([]string, 0, len(cfg.Appenders))
	for name := range cfg.Appenders {
		names = append(names, name)
	}
	slices.Sort(names)

	st := &state{cfg: cfg, appenders: make(map[string]xappender.Appender, len(names))}
	for _, name := range names {
		a, err := xappender.Configure(cfg.Appenders[name], deps)
		if err != nil {
			_ = shutdownAll(context.Background(), st.appenders)
			return nil, fmt.Errorf("xlog: appender %q: %w", name, err)
		}
		st.appenders[name] = a
	}
	return st, nil
}

// Logger 返回分类 Logger，空分类为 default
func (f *Facility) Logger(category string) LoggerWithLevel {
	if category == "" {
		category = DefaultCategory
	}
	return &xlogger{
		handler:  &Handler{f: f, category: category},
		f:        f,
		category: category,
	}
}

// Slog 返回分类的标准库 *slog.Logger，与 Logger 共享输出端与级别
func (f *Facility) Slog(category string) *slog.Logger {
	if category == "" {
		category = DefaultCategory
	}
	return slog.New(&Handler{f: f, category: category})
}

// Registry 门面使用的写入器注册表
func (f *Facility) Registry() *xregistry.Registry {
	return f.registry
}

// Errors 内部错误计数（事件在关闭后写入等）
func (f *Facility) Errors() uint64 {
	return f.errorCount.Load()
}

// SetLevel 运行时设置分类级别，子分类未单独设置时随之变化
func (f *Facility) SetLevel(category string, level Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[category] = level
	f.st.routes.Clear()
}

// Level 分类当前生效的级别
func (f *Facility) Level(category string) Level {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.resolveLocked(category).level
}

func (f *Facility) enabled(category string, level Level) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false
	}
	return level.AtLeast(f.resolveLocked(category).level)
}

func (f *Facility) wantSource(category string) bool {
	if f.addSource {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.resolveLocked(category).callStack
}

// dispatch 将事件写入分类绑定的所有输出端
func (f *Facility) dispatch(category string, e xevent.Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrShutdown
	}
	r := f.resolveLocked(category)
	if !e.Level().AtLeast(r.level) {
		return nil
	}
	for _, a := range r.appenders {
		a.Write(e)
	}
	return nil
}

// resolveLocked 按层级解析分类：级别与输出端分别取最近的已配置祖先
func (f *Facility) resolveLocked(category string) *route {
	if v, ok := f.st.routes.Load(category); ok {
		if r, ok := v.(*route); ok {
			return r
		}
	}

	r := &route{level: LevelInfo}
	levelSet, appendersSet := false, false
	for c := category; ; c = parent(c) {
		cfg, configured := f.st.cfg.Categories[c]
		if !levelSet {
			if lv, ok := f.overrides[c]; ok {
				r.level, levelSet = lv, true
			} else if configured && cfg.Level != "" {
				if lv, err := ParseLevel(cfg.Level); err == nil {
					r.level, levelSet = lv, true
				}
			}
		}
		if !appendersSet && configured {
			for _, name := range cfg.Appenders {
				if a, ok := f.st.appenders[name]; ok {
					r.appenders = append(r.appenders, a)
				}
			}
			r.callStack = cfg.EnableCallStack
			appendersSet = true
		}
		if (levelSet && appendersSet) || c == DefaultCategory {
			break
		}
	}
	f.st.routes.Store(category, r)
	return r
}

// Reconfigure 以新配置替换所有输出端
//
// 先关闭旧输出端（释放文件路径），再按新配置创建。新配置创建失败时恢复旧配置并返回错误。
// 运行时 SetLevel 设置的级别保留。
func (f *Facility) Reconfigure(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrShutdown
	}
	old := f.st
	if err := shutdownAll(ctx, old.appenders); err != nil {
		f.deps.Diag.Error("close appenders on reconfigure", err)
	}

	st, err := newState(cfg, f.deps)
	if err != nil {
		restored, rerr := newState(old.cfg, f.deps)
		if rerr != nil {
			f.st = &state{cfg: old.cfg, appenders: map[string]xappender.Appender{}}
			return errors.Join(err, rerr)
		}
		f.st = restored
		return err
	}
	f.st = st
	return nil
}

// Reopen 重新打开所有文件（外部 logrotate 之后）
func (f *Facility) Reopen() error {
	return f.registry.Reopen()
}

// Shutdown 关闭所有输出端，之后的事件被丢弃
//
// 重复调用立即返回 nil。
func (f *Facility) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	apps := f.st.appenders
	f.mu.Unlock()

	return shutdownAll(ctx, apps)
}

// shutdownAll 并发关闭输出端，合并错误
func shutdownAll(ctx context.Context, apps map[string]xappender.Appender) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for name, a := range apps {
		g.Go(func() error {
			if err := closeAppender(ctx, a); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("appender %q: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func closeAppender(ctx context.Context, a xappender.Appender) error {
	if c, ok := a.(xappender.Closer); ok {
		return c.CloseContext(ctx)
	}
	done := make(chan error, 1)
	a.Shutdown(func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
