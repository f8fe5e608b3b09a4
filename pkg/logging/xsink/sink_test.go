package xsink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle 可编程的句柄：按脚本返回背压或错误
type fakeHandle struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	writes   int
	closes   int
	pressure map[int]bool  // 第 i 次写入返回 flushed=false
	fail     map[int]error // 第 i 次写入失败
	partial  map[int]int   // 第 i 次写入只写前 n 字节
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		pressure: map[int]bool{},
		fail:     map[int]error{},
		partial:  map[int]int{},
	}
}

func (h *fakeHandle) Write(p []byte) (int, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writes++
	if n, ok := h.partial[h.writes]; ok {
		h.buf.Write(p[:n])
		return n, false, h.fail[h.writes]
	}
	if err := h.fail[h.writes]; err != nil {
		return 0, false, err
	}
	h.buf.Write(p)
	return len(p), !h.pressure[h.writes], nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

func (h *fakeHandle) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}

// =============================================================================
// 写入与排空
// =============================================================================

func TestSink_NotReadyQueues(t *testing.T) {
	h := newFakeHandle()
	s := New(h)

	n, err := s.Write([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, _ = s.Write([]byte("b"))

	assert.Equal(t, 2, s.Pending())
	assert.Empty(t, h.String())

	s.OnReady()
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, "ab", h.String())
}

func TestSink_CopiesInput(t *testing.T) {
	h := newFakeHandle()
	s := New(h)

	p := []byte("abc")
	_, _ = s.Write(p)
	p[0] = 'X'

	s.OnReady()
	assert.Equal(t, "abc", h.String())
}

func TestSink_BackpressureStopsDraining(t *testing.T) {
	h := newFakeHandle()
	h.pressure[1] = true
	s := New(h)

	_, _ = s.Write([]byte("1"))
	_, _ = s.Write([]byte("2"))
	_, _ = s.Write([]byte("3"))

	s.OnReady()
	// 第一次写入被接受但报告背压，其余保持排队
	assert.Equal(t, "1", h.String())
	assert.Equal(t, 2, s.Pending())
	assert.False(t, s.Ready())

	s.OnReady()
	assert.Equal(t, "123", h.String())
	assert.Equal(t, 0, s.Pending())
}

func TestSink_ErrorKeepsDataAndReports(t *testing.T) {
	h := newFakeHandle()
	boom := errors.New("disk full")
	h.fail[1] = boom

	var reported []error
	s := New(h, WithReady(true), WithOnError(func(err error) {
		reported = append(reported, err)
	}))

	n, err := s.Write([]byte("keep"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)
	assert.Equal(t, 1, s.Pending())

	s.OnError(boom)
	assert.Len(t, reported, 2)
	assert.Equal(t, 1, s.Pending())

	s.OnReady()
	assert.Equal(t, "keep", h.String())
}

func TestSink_PartialWriteKeepsRemainder(t *testing.T) {
	h := newFakeHandle()
	h.partial[1] = 2
	s := New(h, WithReady(true))

	_, _ = s.Write([]byte("abcdef"))
	assert.Equal(t, "ab", h.String())
	assert.Equal(t, 1, s.Pending())

	s.OnReady()
	assert.Equal(t, "abcdef", h.String())
}

func TestSink_ObserverPanicIsolated(t *testing.T) {
	h := newFakeHandle()
	h.fail[1] = errors.New("x")
	s := New(h, WithReady(true), WithOnError(func(error) { panic("observer") }))

	assert.NotPanics(t, func() {
		_, _ = s.Write([]byte("a"))
	})
}

// =============================================================================
// 关闭
// =============================================================================

func TestSink_CloseReadyDrainsSynchronously(t *testing.T) {
	h := newFakeHandle()
	s := New(h)
	_, _ = s.Write([]byte("x"))
	s.OnReady()
	_, _ = s.Write([]byte("y"))

	calls := 0
	s.Close(true, func(err error) {
		calls++
		assert.NoError(t, err)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, "xy", h.String())
	assert.Equal(t, 1, h.closes)
}

func TestSink_CloseNotReadyCompletesOnReady(t *testing.T) {
	h := newFakeHandle()
	s := New(h)
	_, _ = s.Write([]byte("later"))

	calls := 0
	s.Close(true, func(error) { calls++ })
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, h.closes)

	// 关闭后不再接受写入
	_, err := s.Write([]byte("no"))
	assert.ErrorIs(t, err, ErrClosed)

	s.OnReady()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "later", h.String())
	assert.Equal(t, 1, h.closes)

	s.OnReady()
	assert.Equal(t, 1, calls)
}

func TestSink_CloseWithoutFlushDropsQueue(t *testing.T) {
	h := newFakeHandle()
	s := New(h)
	_, _ = s.Write([]byte("dropped"))

	var got error = errors.New("unset")
	s.Close(false, func(err error) { got = err })

	assert.NoError(t, got)
	assert.Empty(t, h.String())
	assert.Equal(t, 1, h.closes)
}

func TestSink_DoubleClose(t *testing.T) {
	h := newFakeHandle()
	s := New(h, WithReady(true))

	first, second := 0, 0
	s.Close(true, func(error) { first++ })
	s.Close(true, func(err error) {
		second++
		assert.ErrorIs(t, err, ErrClosed)
	})

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, h.closes)
}

func TestSink_CloseNilCallback(t *testing.T) {
	s := New(newFakeHandle(), WithReady(true))
	assert.NotPanics(t, func() { s.Close(true, nil) })
}

// =============================================================================
// Flush / Detach
// =============================================================================

func TestSink_FlushForcesDrain(t *testing.T) {
	h := newFakeHandle()
	s := New(h)
	_, _ = s.Write([]byte("f"))

	require.NoError(t, s.Flush())
	assert.Equal(t, "f", h.String())
}

func TestSink_FlushReturnsError(t *testing.T) {
	h := newFakeHandle()
	boom := errors.New("eio")
	h.fail[1] = boom
	s := New(h)
	_, _ = s.Write([]byte("f"))

	assert.ErrorIs(t, s.Flush(), boom)
	assert.Equal(t, 1, s.Pending())
}

func TestSink_DetachReturnsUnwritten(t *testing.T) {
	h := newFakeHandle()
	boom := errors.New("eio")
	h.fail[1] = boom
	s := New(h)
	_, _ = s.Write([]byte("a"))
	_, _ = s.Write([]byte("b"))

	rest, err := s.Detach()
	assert.ErrorIs(t, err, boom)
	require.Len(t, rest, 2)
	assert.Equal(t, "a", string(rest[0]))
	assert.Equal(t, 1, h.closes)

	_, err = s.Detach()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Write([]byte("c"))
	assert.ErrorIs(t, err, ErrClosed)
}

// =============================================================================
// FileHandle
// =============================================================================

func TestFileHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)

	h := NewFileHandle(f)
	s := New(h, WithReady(true))
	_, err = s.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, s.Flush())
	assert.Equal(t, path, h.Name())

	done := make(chan error, 1)
	s.Close(true, func(err error) { done <- err })
	require.NoError(t, <-done)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}

func TestWriterHandle_DoesNotCloseStdStreams(t *testing.T) {
	h := WriterHandle(os.Stderr)
	assert.NoError(t, h.Close())

	var buf bytes.Buffer
	wh := WriterHandle(&buf)
	n, flushed, err := wh.Write([]byte("x"))
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, 1, n)
	assert.NoError(t, wh.Close())
}
