package xrotate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
	"golang.org/x/time/rate"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
	"github.com/omeyang/xlogkit/pkg/logging/xpolicy"
	"github.com/omeyang/xlogkit/pkg/logging/xsink"
	"github.com/omeyang/xlogkit/pkg/observability/xmetrics"
)

// State 写入器状态
type State int32

// 写入器状态常量
const (
	// StateOpen 正常写入
	StateOpen State = iota
	// StateRolling 轮转进行中，写入排队
	StateRolling
	// StateClosed 已关闭（终态）
	StateClosed
	// StateFailed 无法打开新文件，写入返回 ErrDegraded
	StateFailed
)

// String 返回状态名
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateRolling:
		return "rolling"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RollingWriter 按大小/日期轮转的日志文件写入器
//
// 写入在一把互斥锁下串行化。需要轮转时，触发轮转的写入及其后所有写入
// 进入待写队列，轮转在独立 goroutine 中执行；新文件就绪后按提交顺序回放。
// 同一写入器同一时刻最多一个轮转在进行。
//
// 写入空文件永远不会触发大小轮转：超过上限的单条写入在轮转后完整写入新文件，
// 不拆分、不丢弃。
type RollingWriter struct {
	cfg    Config
	names  naming
	policy xpolicy.Policy
	diag   *xdiag.Channel
	rec    xmetrics.Recorder
	now    func() time.Time

	// 可注入的文件操作，仅用于测试
	openFn     func(name string, mode os.FileMode) (*os.File, error)
	compressFn func(src string, mode os.FileMode) (int64, int64, error)
	handleFn   func(f *os.File) xsink.Handle

	// drainRetry 句柄出错后恢复排空的节流
	drainRetry *rate.Limiter

	mu       sync.Mutex
	state    State
	sink     *xsink.Sink
	live     string
	size     int64
	lastRoll time.Time
	pending  [][]byte
	failErr  error
	rollDone chan struct{}

	compressing sync.WaitGroup
}

// New 创建轮转写入器并打开活动文件
//
// 参数:
//   - filename: 日志文件路径（必需）
//   - opts: 可选配置项
//
// 活动文件以追加模式打开：已有内容保留，计数从现有大小开始，
// 上次轮转时间取文件修改时间（空文件或带日期的活动文件取当前时间）。
func New(filename string, opts ...Option) (*RollingWriter, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}

	var cfg Config
	applyOptions(&cfg, opts)
	pattern, err := validateRolling(&cfg)
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

	w := &RollingWriter{
		cfg:        cfg,
		names:      newNaming(safePath, &cfg, pattern),
		policy:     buildPolicy(&cfg, pattern),
		diag:       cfg.Diag,
		rec:        xmetrics.OrNoop(cfg.Recorder),
		now:        cfg.Clock,
		openFn:     openAppend,
		compressFn: compressFile,
		handleFn:   func(f *os.File) xsink.Handle { return xsink.NewFileHandle(f) },
		drainRetry: rate.NewLimiter(rate.Every(drainRetryInterval), 1),
	}
	if w.diag == nil {
		w.diag = xdiag.New()
	}
	if w.now == nil {
		w.now = time.Now
	}

	now := w.now()
	f, name, err := w.openFile(now)
	if err != nil {
		return nil, err
	}
	size := w.installLocked(f, name, now)
	if size > 0 && !w.names.always {
		if info, err := f.Stat(); err == nil {
			w.lastRoll = info.ModTime()
		}
	}
	return w, nil
}

// Write 写入日志数据，实现 io.Writer
//
// 轮转期间写入进入队列并立即返回 len(p)。
// 关闭后返回 ErrClosed，降级后返回包装了原因的 ErrDegraded，均不执行 IO。
func (w *RollingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateClosed:
		return 0, ErrClosed
	case StateFailed:
		return 0, w.degradedLocked()
	case StateRolling:
		if len(p) > 0 {
			w.pending = append(w.pending, bytes.Clone(p))
		}
		return len(p), nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	if reason := w.decideLocked(len(p)); reason.Roll() {
		w.pending = append(w.pending, bytes.Clone(p))
		w.startRotationLocked(reason)
		return len(p), nil
	}
	w.writeLocked(p)
	return len(p), nil
}

// Rotate 手动触发轮转并等待完成
//
// 已有轮转在进行时等待其完成后再执行一次。降级状态下尝试重新打开活动文件。
func (w *RollingWriter) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.waitIdleLocked(context.Background()); err != nil {
		return err
	}
	switch w.state {
	case StateClosed:
		return ErrClosed
	case StateFailed:
		return w.reopenLocked()
	}

	w.startRotationLocked(xpolicy.ReasonManual)
	if err := w.waitIdleLocked(context.Background()); err != nil {
		return err
	}
	if w.state == StateFailed {
		return w.degradedLocked()
	}
	return nil
}

// Reopen 关闭并重新打开活动文件，不改名
//
// 用于外部 logrotate 已移走文件后（SIGHUP）。降级状态下可用于恢复。
func (w *RollingWriter) Reopen() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.waitIdleLocked(context.Background()); err != nil {
		return err
	}
	if w.state == StateClosed {
		return ErrClosed
	}
	return w.reopenLocked()
}

// Flush 等待进行中的轮转，并把数据刷到磁盘
func (w *RollingWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.waitIdleLocked(context.Background()); err != nil {
		return err
	}
	switch w.state {
	case StateClosed:
		return ErrClosed
	case StateFailed:
		return w.degradedLocked()
	}
	return w.sink.Flush()
}

// Close 关闭写入器，实现 io.Closer
//
// 等待进行中的轮转与回放、刷盘、关闭文件并等待后台压缩。重复调用返回 ErrClosed。
func (w *RollingWriter) Close() error {
	return w.CloseContext(context.Background())
}

// CloseContext 同 Close，ctx 结束时返回 ErrClosePending
//
// 若在等待轮转时超时，写入器保持未关闭，可再次调用。
func (w *RollingWriter) CloseContext(ctx context.Context) error {
	w.mu.Lock()
	if err := w.waitIdleLocked(ctx); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.state == StateClosed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.state = StateClosed
	sink := w.sink
	w.sink = nil
	live := w.live
	w.mu.Unlock()

	var closeErr error
	if sink != nil {
		rest, err := sink.Detach()
		if len(rest) > 0 {
			w.reportLost(live, len(rest), err)
		}
		closeErr = err
	}
	if err := w.waitCompression(ctx); err != nil {
		return err
	}
	return closeErr
}

// State 当前状态
func (w *RollingWriter) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Size 活动文件的当前字节数（含已接受但尚在队列中的写入之前的值）
func (w *RollingWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Filename 当前活动文件路径
func (w *RollingWriter) Filename() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live
}

// decideLocked 以"写入之后"的大小求值策略
//
// 日期比较在备份命名所用的时区下进行，轮转边界与文件名中的日期一致。
func (w *RollingWriter) decideLocked(n int) xpolicy.Reason {
	loc := w.names.loc()
	now := w.now().In(loc)
	r := w.policy.ShouldRoll(xpolicy.State{
		Size:     w.size + int64(n),
		LastRoll: w.lastRoll.In(loc),
		Now:      now,
	})
	if !r.Roll() || w.size > 0 {
		return r
	}
	// 空文件：大小轮转没有意义，保证超大单条写入能推进
	if r == xpolicy.ReasonDate {
		if w.names.always {
			return r
		}
		w.lastRoll = now
	}
	return xpolicy.ReasonNone
}

// writeLocked 写入活动文件
//
// 写错误或短写后句柄不会主动通知就绪，这里按节流间隔重新排空，
// 恢复后积压的数据按序写出。
func (w *RollingWriter) writeLocked(p []byte) {
	if _, err := w.sink.Write(p); err != nil {
		w.diag.Error("write log file failed", err, xdiag.Path(w.live))
		return
	}
	if !w.sink.Ready() && w.drainRetry.Allow() {
		w.sink.OnReady()
	}
	w.size += int64(len(p))
	w.rec.RecordWrite(context.Background(), w.live, len(p))
}

func (w *RollingWriter) startRotationLocked(reason xpolicy.Reason) {
	w.state = StateRolling
	done := make(chan struct{})
	w.rollDone = done
	go w.rotate(reason, done)
}

// waitIdleLocked 释放锁等待进行中的轮转，返回时仍持有锁
func (w *RollingWriter) waitIdleLocked(ctx context.Context) error {
	for w.state == StateRolling {
		done := w.rollDone
		w.mu.Unlock()
		select {
		case <-done:
			w.mu.Lock()
		case <-ctx.Done():
			w.mu.Lock()
			return fmt.Errorf("%w: rotation in progress: %w", ErrClosePending, ctx.Err())
		}
	}
	return nil
}

// rotate 执行轮转序列，回放队列；回放再次触发轮转时在同一 goroutine 内继续
func (w *RollingWriter) rotate(reason xpolicy.Reason, done chan struct{}) {
	defer close(done)

	for {
		start := w.now()

		w.mu.Lock()
		sink, live, lastRoll := w.sink, w.live, w.lastRoll
		w.sink = nil
		w.mu.Unlock()

		// 1. 刷新并关闭旧句柄，未写出的数据转入新文件
		leftover, err := sink.Detach()
		if err != nil {
			w.diag.Error("close log file failed", err, xdiag.Path(live))
		}

		// 2-3. 等待上一次压缩，平移备份，活动文件改名
		w.compressing.Wait()
		backup := w.archive(live, lastRoll, reason)
		w.pruneDated(w.names.live(start))

		// 4. 后台压缩
		if backup != "" && w.cfg.Compress {
			w.compressAsync(backup)
		}

		// 5. 打开新文件
		f, name, openErr := w.openFile(start)
		w.rec.RecordRotation(context.Background(), live, reason.String(), w.now().Sub(start), openErr)

		w.mu.Lock()
		queue := append(leftover, w.pending...)
		w.pending = nil
		if openErr != nil {
			w.failLocked(openErr, name, len(queue))
			w.mu.Unlock()
			return
		}

		// 6. 计数归零或沿用已有日期文件大小
		w.installLocked(f, name, start)
		if backup == "" {
			// 改名失败时新句柄仍指向旧文件，计数归零以保证回放推进
			w.size = 0
		}
		next, rest := w.replayLocked(queue)
		if !next.Roll() {
			w.mu.Unlock()
			return
		}
		w.state = StateRolling
		w.pending = rest
		reason = next
		w.mu.Unlock()
	}
}

// replayLocked 按序回放；遇到需要轮转的条目时返回原因和剩余队列（含该条目）
func (w *RollingWriter) replayLocked(queue [][]byte) (xpolicy.Reason, [][]byte) {
	for i, p := range queue {
		if r := w.decideLocked(len(p)); r.Roll() {
			return r, queue[i:]
		}
		w.writeLocked(p)
	}
	return xpolicy.ReasonNone, nil
}

// reopenLocked 原地重新打开活动文件，并回放旧句柄的残留数据
func (w *RollingWriter) reopenLocked() error {
	var leftover [][]byte
	if w.sink != nil {
		rest, err := w.sink.Detach()
		if err != nil {
			w.diag.Error("close log file failed", err, xdiag.Path(w.live))
		}
		leftover = rest
		w.sink = nil
	}

	now := w.now()
	f, name, err := w.openFile(now)
	if err != nil {
		w.failLocked(err, name, len(leftover))
		return w.degradedLocked()
	}
	w.installLocked(f, name, now)
	if next, rest := w.replayLocked(leftover); next.Roll() {
		w.pending = rest
		w.startRotationLocked(next)
	}
	return nil
}

// installLocked 安装新句柄并切换到 OPEN，返回文件已有大小
func (w *RollingWriter) installLocked(f *os.File, name string, now time.Time) int64 {
	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
		if info.Mode().Perm() != w.cfg.FileMode {
			if err := f.Chmod(w.cfg.FileMode); err != nil {
				w.diag.Warn("chmod log file failed", xdiag.Path(name), slog.Any("error", err))
			}
		}
	}
	h := w.handleFn(f)
	w.sink = xsink.New(h, xsink.WithReady(true), xsink.WithOnError(func(err error) {
		w.diag.Error("log file write error", err, xdiag.Path(name))
	}))
	w.live = name
	w.size = size
	w.lastRoll = now
	w.state = StateOpen
	w.failErr = nil
	return size
}

// failLocked 进入降级状态，队列中的数据计为丢失
func (w *RollingWriter) failLocked(err error, name string, lost int) {
	w.state = StateFailed
	w.failErr = err
	w.pending = nil
	w.reportLost(name, lost, err)
	w.diag.Error("open log file failed, writer degraded", err, xdiag.Path(name))
}

func (w *RollingWriter) reportLost(name string, lost int, cause error) {
	if lost == 0 {
		return
	}
	w.rec.RecordLost(context.Background(), name, lost)
	w.diag.Error("pending log writes lost", cause, xdiag.Path(name), slog.Int("lost", lost))
}

func (w *RollingWriter) degradedLocked() error {
	return fmt.Errorf("%w: %w", ErrDegraded, w.failErr)
}

// openFile 打开活动文件，失败时有限次重试
func (w *RollingWriter) openFile(now time.Time) (*os.File, string, error) {
	name := w.names.live(now)
	f, err := retry.NewWithData[*os.File](
		retry.Attempts(uint(w.cfg.OpenAttempts)),
		retry.Delay(openRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(func() (*os.File, error) {
		return w.openFn(name, w.cfg.FileMode)
	})
	return f, name, err
}

func openAppend(name string, mode os.FileMode) (*os.File, error) {
	//#nosec G304 -- 路径已经过 sanitizePath 检查
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
}
