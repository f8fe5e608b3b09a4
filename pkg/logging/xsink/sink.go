package xsink

import (
	"errors"
	"sync"
)

// ErrClosed Sink 已关闭
var ErrClosed = errors.New("xsink: sink is closed")

// Option Sink 配置选项
type Option func(*Sink)

// WithReady 设置初始就绪状态（默认未就绪）
//
// 文件句柄在构造时已打开，通常传 true。
func WithReady(ready bool) Option {
	return func(s *Sink) {
		s.ready = ready
	}
}

// WithOnError 设置错误观察者
//
// 回调在 Sink 锁外执行，回调内的 panic 会被恢复。
func WithOnError(fn func(error)) Option {
	return func(s *Sink) {
		s.onError = fn
	}
}

// Sink 带背压的缓冲写入
//
// 写入先入队再尝试排空；句柄未就绪、背压或出错时数据留在队列中，
// 直到 OnReady 或 Flush。已接受的数据不会被丢弃，顺序始终保持。
// 并发安全。
type Sink struct {
	mu      sync.Mutex
	h       Handle
	queue   [][]byte
	ready   bool
	closed  bool
	onError func(error)

	// 等待就绪后完成的关闭
	closeDone  func(error)
	closeFlush bool
	handleShut bool
}

// New 创建 Sink
func New(h Handle, opts ...Option) *Sink {
	s := &Sink{h: h}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Write 复制 p 入队并尝试排空
//
// 排空失败不返回错误（数据仍在队列中），错误通过观察者上报。
// 关闭后返回 ErrClosed。
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if len(p) > 0 {
		s.queue = append(s.queue, append([]byte(nil), p...))
	}
	err := s.drainLocked()
	s.mu.Unlock()

	s.report(err)
	return len(p), nil
}

// OnReady 句柄就绪通知，恢复排空
//
// 若有等待中的关闭且队列已清空，在此完成关闭。
func (s *Sink) OnReady() {
	s.mu.Lock()
	if s.handleShut {
		s.mu.Unlock()
		return
	}
	s.ready = true
	err := s.drainLocked()
	done, result := s.finishCloseLocked()
	s.mu.Unlock()

	s.report(err)
	if done != nil {
		done(result)
	}
}

// OnError 句柄错误通知：上报观察者，队列不变
func (s *Sink) OnError(err error) {
	s.report(err)
}

// Flush 同步排空，返回第一个错误
//
// Flush 视句柄为就绪并立即重试；句柄实现 Syncer 时一并 Sync。
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handleShut {
		return ErrClosed
	}
	s.ready = true
	if err := s.drainLocked(); err != nil {
		return err
	}
	if len(s.queue) > 0 {
		return nil
	}
	if sy, ok := s.h.(Syncer); ok {
		return sy.Sync()
	}
	return nil
}

// Close 关闭 Sink
//
// flushRemaining=true 时先排空：就绪则同步完成，否则在下一次 OnReady 后完成。
// flushRemaining=false 丢弃队列直接关闭句柄。
// done 恰好调用一次（可为 nil）；重复关闭时 done 立即以 ErrClosed 调用。
func (s *Sink) Close(flushRemaining bool, done func(error)) {
	if done == nil {
		done = func(error) {}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done(ErrClosed)
		return
	}
	s.closed = true
	s.closeDone = done
	s.closeFlush = flushRemaining

	var err error
	if flushRemaining && s.ready {
		err = s.drainLocked()
	}
	fn, result := s.finishCloseLocked()
	s.mu.Unlock()

	s.report(err)
	if fn != nil {
		fn(result)
	}
}

// Detach 关闭句柄并取回未写出的数据
//
// 用于轮转：旧句柄上残留的数据转移到新文件，不丢失。调用后 Sink 不可再用。
func (s *Sink) Detach() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handleShut {
		return nil, ErrClosed
	}
	s.ready = true
	drainErr := s.drainLocked()

	rest := s.queue
	s.queue = nil
	s.closed = true
	s.handleShut = true
	closeErr := s.h.Close()
	if drainErr != nil {
		return rest, errors.Join(drainErr, closeErr)
	}
	return rest, closeErr
}

// Pending 队列中的条目数
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Ready 报告句柄当前是否就绪
func (s *Sink) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// drainLocked 在就绪时按序写出队列
func (s *Sink) drainLocked() error {
	for s.ready && len(s.queue) > 0 {
		head := s.queue[0]
		n, flushed, err := s.h.Write(head)
		if n > len(head) {
			n = len(head)
		}
		if err != nil {
			s.keepRemainder(n)
			s.ready = false
			return err
		}
		if n < len(head) {
			// 短写视为背压
			s.keepRemainder(n)
			s.ready = false
			return nil
		}
		s.queue[0] = nil
		s.queue = s.queue[1:]
		if !flushed {
			s.ready = false
			return nil
		}
	}
	if len(s.queue) == 0 {
		s.queue = nil
	}
	return nil
}

func (s *Sink) keepRemainder(n int) {
	if n <= 0 {
		return
	}
	s.queue[0] = s.queue[0][n:]
	if len(s.queue[0]) == 0 {
		s.queue = s.queue[1:]
	}
}

// finishCloseLocked 若关闭条件满足，关闭句柄并返回待调用的回调
func (s *Sink) finishCloseLocked() (func(error), error) {
	if !s.closed || s.closeDone == nil || s.handleShut {
		return nil, nil
	}
	if s.closeFlush && len(s.queue) > 0 {
		return nil, nil
	}
	s.queue = nil
	s.handleShut = true
	err := s.h.Close()
	done := s.closeDone
	s.closeDone = nil
	return done, err
}

func (s *Sink) report(err error) {
	if err != nil && s.onError != nil {
		defer func() { recover() }() //nolint:errcheck // recover 返回值无需检查
		s.onError(err)
	}
}
