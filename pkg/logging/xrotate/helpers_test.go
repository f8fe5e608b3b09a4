package xrotate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
)

// fakeClock 可控时间源
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// fakeRecorder 计数型指标记录
type fakeRecorder struct {
	mu          sync.Mutex
	written     int
	rotations   []string
	compressed  int
	compressErr int
	lost        int
}

func (r *fakeRecorder) RecordWrite(_ context.Context, _ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written += n
}

func (r *fakeRecorder) RecordRotation(_ context.Context, _ string, reason string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotations = append(r.rotations, reason)
}

func (r *fakeRecorder) RecordCompression(_ context.Context, _ string, _, _ int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compressed++
	if err != nil {
		r.compressErr++
	}
}

func (r *fakeRecorder) RecordLost(_ context.Context, _ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost += n
}

func (r *fakeRecorder) snapshot() fakeRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fakeRecorder{
		written:     r.written,
		rotations:   append([]string(nil), r.rotations...),
		compressed:  r.compressed,
		compressErr: r.compressErr,
		lost:        r.lost,
	}
}

// line 生成固定 26 字节的日志行
func line(i int) string {
	s := fmt.Sprintf("m%d ", i)
	return s + strings.Repeat("x", 25-len(s)) + "\n"
}

func newTestWriter(t *testing.T, name string, opts ...Option) (*RollingWriter, string, *xdiag.Channel) {
	t.Helper()
	diag := xdiag.Discard()
	path := filepath.Join(t.TempDir(), name)
	w, err := New(path, append([]Option{WithDiag(diag)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, path, diag
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func readGzip(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}

// dirFiles 返回目录中的文件名（排序）
func dirFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func failingOpen(err error) func(string, os.FileMode) (*os.File, error) {
	return func(string, os.FileMode) (*os.File, error) { return nil, err }
}
