package xappender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
	"github.com/omeyang/xlogkit/pkg/logging/xevent"
)

// minSweepInterval 空闲清理的最小扫描间隔
const minSweepInterval = 10 * time.Millisecond

type fileEntry struct {
	app  *FileAppender
	last time.Time
}

// MultiFileAppender 按事件属性路由到多个文件
//
// 路由键取自事件上下文中 Property 对应的值（Property 为 "categoryName" 时取分类名），
// 写入 <Base>/<key><Extension>。文件按需打开，超过 Timeout 未写入或超出
// MaxOpenFiles 时关闭。缺少路由键的事件被丢弃。
type MultiFileAppender struct {
	template Options
	deps     Deps
	diag     *xdiag.Channel
	timeout  time.Duration

	mu      sync.Mutex
	files   *lru.Cache[string, *fileEntry]
	evicted []*FileAppender
	stopped bool

	stop      chan struct{}
	sweepOnce sync.Once
	wg        sync.WaitGroup
}

var (
	_ Appender = (*MultiFileAppender)(nil)
	_ Closer   = (*MultiFileAppender)(nil)
)

// NewMultiFileAppender 创建多文件输出端
func NewMultiFileAppender(opts Options, deps Deps) (*MultiFileAppender, error) {
	if strings.TrimSpace(opts.Base) == "" {
		return nil, fmt.Errorf("%w: multiFile requires base", ErrConfiguration)
	}
	if strings.TrimSpace(opts.Property) == "" {
		return nil, fmt.Errorf("%w: multiFile requires property", ErrConfiguration)
	}
	if err := checkEncoding(opts.Encoding); err != nil {
		return nil, err
	}
	if _, err := ParseSize(opts.MaxLogSize); err != nil {
		return nil, err
	}
	if _, err := parseMode(opts.Mode); err != nil {
		return nil, err
	}
	timeout, err := parseTimeout(opts.Timeout)
	if err != nil {
		return nil, err
	}
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	maxOpen := opts.MaxOpenFiles
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenFiles
	}

	deps.Diag = deps.diag()
	a := &MultiFileAppender{
		template: opts,
		deps:     deps,
		diag:     deps.Diag,
		timeout:  timeout,
		stop:     make(chan struct{}),
	}
	// 淘汰回调在 a.mu 内由 Add/Remove/Purge 触发，只收集不关闭
	a.files, err = lru.NewWithEvict(maxOpen, func(_ string, e *fileEntry) {
		a.evicted = append(a.evicted, e.app)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return a, nil
}

// Write 按路由键写入对应文件
func (a *MultiFileAppender) Write(e xevent.Event) {
	defer guard(a.diag, a.template.Base)

	key, ok := a.routeKey(e)
	if !ok {
		return
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	ent, ok := a.files.Get(key)
	if !ok {
		app, err := NewFileAppender(a.fileOptions(key), a.deps)
		if err != nil {
			a.mu.Unlock()
			a.diag.Error("drop event: open routed file", err, slog.String("key", key))
			return
		}
		ent = &fileEntry{app: app}
		a.files.Add(key, ent)
		a.startSweeperLocked()
	}
	ent.last = a.now()
	ent.app.Write(e)
	a.closeEvictedLocked()
	a.mu.Unlock()
}

// Shutdown 关闭所有打开的文件并停止空闲清理
func (a *MultiFileAppender) Shutdown(done func(error)) {
	shutdownWith(a, done)
}

// CloseContext 关闭所有打开的文件，重复调用立即返回 nil
func (a *MultiFileAppender) CloseContext(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	close(a.stop)
	a.files.Purge()
	evicted := a.takeEvictedLocked()
	a.mu.Unlock()

	a.wg.Wait()
	return a.closeAll(ctx, evicted)
}

// Open 当前打开的文件数
func (a *MultiFileAppender) Open() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.files.Len()
}

// routeKey 取路由键，拒绝会逃出 Base 目录的值
func (a *MultiFileAppender) routeKey(e xevent.Event) (string, bool) {
	var key string
	if a.template.Property == PropertyCategory {
		key = e.Category()
	} else {
		v, ok := e.Value(a.template.Property)
		if !ok || v == nil {
			return "", false
		}
		key = fmt.Sprint(v)
	}
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`+"\x00") {
		a.diag.Warn("drop event: invalid route key", slog.String("key", key))
		return "", false
	}
	return key, true
}

func (a *MultiFileAppender) fileOptions(key string) Options {
	o := a.template
	o.Type = TypeFile
	if a.template.Pattern != "" {
		o.Type = TypeDateFile
	}
	o.Filename = filepath.Join(a.template.Base, key+a.template.Extension)
	return o
}

func (a *MultiFileAppender) now() time.Time {
	if a.deps.Clock != nil {
		return a.deps.Clock()
	}
	return time.Now()
}

func (a *MultiFileAppender) takeEvictedLocked() []*FileAppender {
	out := a.evicted
	a.evicted = nil
	return out
}

// closeEvictedLocked 在锁内关闭被淘汰的文件
//
// 同一路由键可能紧接着重新打开，必须先释放旧写入器的路径占用。
func (a *MultiFileAppender) closeEvictedLocked() {
	_ = a.closeAll(context.Background(), a.takeEvictedLocked())
}

// closeAll 并发关闭，合并错误
func (a *MultiFileAppender) closeAll(ctx context.Context, apps []*FileAppender) error {
	if len(apps) == 0 {
		return nil
	}
	errs := make([]error, len(apps))
	var g errgroup.Group
	for i, app := range apps {
		g.Go(func() error {
			errs[i] = app.CloseContext(ctx)
			return nil
		})
	}
	_ = g.Wait()
	err := errors.Join(errs...)
	if err != nil {
		a.diag.Error("close routed files", err)
	}
	return err
}

// startSweeperLocked 首次打开文件时启动空闲清理
func (a *MultiFileAppender) startSweeperLocked() {
	if a.timeout <= 0 {
		return
	}
	a.sweepOnce.Do(func() {
		interval := max(a.timeout/2, minSweepInterval)
		a.wg.Add(1)
		go a.sweep(interval)
	})
}

func (a *MultiFileAppender) sweep(interval time.Duration) {
	defer a.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.closeIdle()
		}
	}
}

// closeIdle 关闭超过 timeout 未写入的文件
func (a *MultiFileAppender) closeIdle() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	now := a.now()
	for _, key := range a.files.Keys() {
		if ent, ok := a.files.Peek(key); ok && now.Sub(ent.last) >= a.timeout {
			a.files.Remove(key)
		}
	}
	a.closeEvictedLocked()
	a.mu.Unlock()
}
