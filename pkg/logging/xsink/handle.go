package xsink

import (
	"io"
	"os"
)

// Handle 底层字节输出句柄
//
// Write 返回已写入的字节数 n。flushed=false 表示数据已接受但句柄暂时无法继续接收
// （背压信号），Sink 停止排空，等待 [Sink.OnReady]。
// 出错时 p[n:] 视为未写入，会保留在队首。
type Handle interface {
	Write(p []byte) (n int, flushed bool, err error)
	Close() error
}

// Syncer 可选接口：支持将内核缓冲刷到磁盘的句柄
type Syncer interface {
	Sync() error
}

// FileHandle 基于 *os.File 的句柄，永远不产生背压
type FileHandle struct {
	f *os.File
}

// NewFileHandle 包装已打开的文件
func NewFileHandle(f *os.File) *FileHandle {
	return &FileHandle{f: f}
}

// Write 实现 Handle
func (h *FileHandle) Write(p []byte) (int, bool, error) {
	n, err := h.f.Write(p)
	return n, err == nil, err
}

// Sync 实现 Syncer
func (h *FileHandle) Sync() error {
	return h.f.Sync()
}

// Close 实现 Handle
func (h *FileHandle) Close() error {
	return h.f.Close()
}

// Name 返回文件路径
func (h *FileHandle) Name() string {
	return h.f.Name()
}

// Stat 返回文件信息
func (h *FileHandle) Stat() (os.FileInfo, error) {
	return h.f.Stat()
}

// writerHandle 任意 io.Writer 的句柄适配
type writerHandle struct {
	w io.Writer
}

// WriterHandle 把 io.Writer 适配为 Handle
//
// 若 w 实现 io.Closer，Close 会关闭它；os.Stdout/os.Stderr 不会被关闭。
func WriterHandle(w io.Writer) Handle {
	return writerHandle{w: w}
}

func (h writerHandle) Write(p []byte) (int, bool, error) {
	n, err := h.w.Write(p)
	return n, err == nil, err
}

func (h writerHandle) Sync() error {
	if s, ok := h.w.(Syncer); ok && !isStdStream(h.w) {
		return s.Sync()
	}
	return nil
}

func (h writerHandle) Close() error {
	if isStdStream(h.w) {
		return nil
	}
	if c, ok := h.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func isStdStream(w io.Writer) bool {
	return w == os.Stdout || w == os.Stderr
}
