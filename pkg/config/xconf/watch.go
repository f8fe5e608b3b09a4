package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omeyang/xlogkit/pkg/observability/xlog"
)

// Reconfigurer 接收新日志配置的目标，*xlog.Facility 实现此接口
type Reconfigurer interface {
	Reconfigure(ctx context.Context, cfg xlog.Config) error
}

// ReloadCallback 每次重载结束后调用，err 非空表示文件解析、校验或应用失败
type ReloadCallback func(cfg xlog.Config, err error)

// Watcher 配置文件监视器
//
// 文件变更后重新加载，校验通过则调用目标的 Reconfigure。
type Watcher struct {
	src      *Source
	target   Reconfigurer
	watcher  *fsnotify.Watcher
	onReload ReloadCallback
	debounce time.Duration
	timeout  time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	mu      sync.Mutex
	running bool
	timer   *time.Timer // debounce 定时器，Stop() 时需要取消
}

// WatchOption 监视器配置选项
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	timeout  time.Duration
	onReload ReloadCallback
}

func defaultWatchOptions() *watchOptions {
	return &watchOptions{
		debounce: 100 * time.Millisecond,
		timeout:  5 * time.Second,
	}
}

// WithDebounce 设置防抖时间，在此时间内的多次变更只触发一次重载，默认 100ms
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithReconfigureTimeout 设置单次 Reconfigure 的超时（关闭旧输出端），默认 5s
func WithReconfigureTimeout(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithOnReload 设置重载回调
func WithOnReload(fn ReloadCallback) WatchOption {
	return func(o *watchOptions) {
		o.onReload = fn
	}
}

// Watch 创建配置文件监视器
//
// 只能监视从文件创建的 Source。返回的 Watcher 需要调用 Start/StartAsync 开始监视，
// Stop 停止监视。
//
//	src, _ := xconf.New("/etc/app/log.yaml")
//	w, err := xconf.Watch(src, facility, xconf.WithOnReload(func(_ xlog.Config, err error) {
//	    if err != nil {
//	        xlog.Warn(ctx, "log config reload failed", xlog.Err(err))
//	    }
//	}))
//	if err != nil {
//	    return err
//	}
//	w.StartAsync()
//	defer w.Stop()
func Watch(src *Source, target Reconfigurer, opts ...WatchOption) (*Watcher, error) {
	if src == nil || src.isBytes || src.path == "" {
		return nil, ErrNotFromFile
	}
	if target == nil {
		return nil, ErrNilTarget
	}

	options := defaultWatchOptions()
	for _, opt := range opts {
		opt(options)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: failed to create watcher: %w", err)
	}

	// 监视目录而非文件：编辑器保存时可能先删除再创建
	dir := filepath.Dir(src.path)
	if err := fsWatcher.Add(dir); err != nil {
		closeErr := fsWatcher.Close()
		return nil, errors.Join(
			fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err),
			closeErr,
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		src:      src,
		target:   target,
		watcher:  fsWatcher,
		onReload: options.onReload,
		debounce: options.debounce,
		timeout:  options.timeout,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Start 启动监视，阻塞直到 Stop
func (w *Watcher) Start() {
	if !w.markRunning() {
		return
	}
	w.run()
}

// StartAsync 在后台 goroutine 中启动监视
//
// 先设置 running 标志再启动 goroutine，避免与 Stop 竞争。
func (w *Watcher) StartAsync() {
	if !w.markRunning() {
		return
	}
	go w.run()
}

func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.ctx.Err() != nil {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视并等待监视循环退出，可重复调用
//
// 在 ReloadCallback 中调用是安全的。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.ctx.Err() != nil {
		w.mu.Unlock()
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.cancel()
	running := w.running
	w.running = false
	w.mu.Unlock()

	err := w.watcher.Close()
	if running {
		<-w.done
	}
	return err
}

// Reload 立即执行一次重载（与文件事件触发的重载相同）
func (w *Watcher) Reload() error {
	cfg, err := w.apply()
	if w.onReload != nil {
		w.onReload(cfg, err)
	}
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	filename := filepath.Base(w.src.path)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, filename)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onReload != nil {
				w.onReload(xlog.Config{}, fmt.Errorf("xconf: watch error: %w", err))
			}
		}
	}
}

// handleEvent 处理文件系统事件
//
// Write 直接修改，Create 部分编辑器新建文件，Rename 为原子写入（写临时文件后 rename）。
func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.ctx.Err() != nil {
			return
		}
		_ = w.Reload()
	})
}

// apply 重新读取文件、校验并应用到目标
func (w *Watcher) apply() (xlog.Config, error) {
	if err := w.src.Reload(); err != nil {
		return xlog.Config{}, err
	}
	cfg, err := w.src.Logging()
	if err != nil {
		return xlog.Config{}, err
	}
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()
	if err := w.target.Reconfigure(ctx, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
