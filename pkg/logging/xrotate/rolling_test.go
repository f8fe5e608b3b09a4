package xrotate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/omeyang/xlogkit/pkg/logging/xsink"
)

// =============================================================================
// 大小轮转
// =============================================================================

// TestRollingWriter_FiftyByteScenario 50 字节上限、2 个备份、4 条 26 字节消息
//
// 每个文件只能容纳一条消息：a.log 是最后一条，a.log.1 是第三条，
// a.log.2 是最早仍保留的内容，第一条被备份上限淘汰。
//
// 第一条消息被有意删除：四条消息要求保留全部内容，而两个备份加活动文件
// 只有三个位置，两者冲突时以备份上限为准。
// 消息总数不变的情形见 TestRollingWriter_MessageCountPreserved。
func TestRollingWriter_FiftyByteScenario(t *testing.T) {
	w, path, _ := newTestWriter(t, "a.log", WithMaxSize(50), WithMaxBackups(2))

	for i := 1; i <= 4; i++ {
		_, err := w.Write([]byte(line(i)))
		require.NoError(t, err)
	}
	require.NoError(t, w.Flush())

	assert.Equal(t, []string{"a.log", "a.log.1", "a.log.2"}, dirFiles(t, filepath.Dir(path)))
	assert.Equal(t, line(4), readFile(t, path))
	assert.Equal(t, line(3), readFile(t, path+".1"))
	assert.Equal(t, line(2), readFile(t, path+".2"))
}

// TestRollingWriter_MessageCountPreserved 备份足够时所有消息都保留且有序
func TestRollingWriter_MessageCountPreserved(t *testing.T) {
	w, path, _ := newTestWriter(t, "a.log", WithMaxSize(100), WithMaxBackups(5))

	for i := 1; i <= 10; i++ {
		_, err := w.Write([]byte(line(i)))
		require.NoError(t, err)
	}
	require.NoError(t, w.Flush())

	// 每个文件 3 行（78 字节），第 4 行会达到 104 触发轮转
	assert.Equal(t, line(1)+line(2)+line(3), readFile(t, path+".3"))
	assert.Equal(t, line(4)+line(5)+line(6), readFile(t, path+".2"))
	assert.Equal(t, line(7)+line(8)+line(9), readFile(t, path+".1"))
	assert.Equal(t, line(10), readFile(t, path))

	var all strings.Builder
	for _, name := range []string{".3", ".2", ".1", ""} {
		all.WriteString(readFile(t, path+name))
	}
	assert.Equal(t, 10, strings.Count(all.String(), "\n"))
}

// TestRollingWriter_SizeBound 活动文件大小始终低于上限，除非单条写入本身超限
func TestRollingWriter_SizeBound(t *testing.T) {
	const max = 64
	w, path, _ := newTestWriter(t, "bound.log", WithMaxSize(max), WithMaxBackups(50))

	sizes := []int{10, 30, 20, 5, 63, 1, 100, 2, 40, 40, 40}
	for _, n := range sizes {
		_, err := w.Write([]byte(strings.Repeat("z", n-1) + "\n"))
		require.NoError(t, err)
		require.NoError(t, w.Flush())

		info, err := os.Stat(path)
		require.NoError(t, err)
		if n < max {
			assert.Less(t, info.Size(), int64(max), "after write of %d", n)
		} else {
			assert.Equal(t, int64(n), info.Size(), "oversized write lands alone")
		}
	}
}

// TestRollingWriter_OversizedWriteNotSplit 超限单条写入在轮转后完整写入
func TestRollingWriter_OversizedWriteNotSplit(t *testing.T) {
	w, path, _ := newTestWriter(t, "big.log", WithMaxSize(10), WithMaxBackups(3))

	big := strings.Repeat("B", 30)
	_, err := w.Write([]byte(big))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	// 空文件不触发轮转
	assert.Equal(t, big, readFile(t, path))

	_, err = w.Write([]byte("small"))
	require.NoError(t, err)
	_, err = w.Write([]byte(big))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.Equal(t, big, readFile(t, path+".2"))
	assert.Equal(t, "small", readFile(t, path+".1"))
	assert.Equal(t, big, readFile(t, path))
}

// TestRollingWriter_ZeroBackupsNormalized MaxBackups=0 规范化为 1
func TestRollingWriter_ZeroBackupsNormalized(t *testing.T) {
	w, path, _ := newTestWriter(t, "z.log", WithMaxSize(30), WithMaxBackups(0))

	for i := 1; i <= 3; i++ {
		_, _ = w.Write([]byte(line(i)))
	}
	require.NoError(t, w.Flush())

	assert.Equal(t, []string{"z.log", "z.log.1"}, dirFiles(t, filepath.Dir(path)))
	assert.Equal(t, line(2), readFile(t, path+".1"))
}

func TestRollingWriter_KeepFileExt(t *testing.T) {
	w, path, _ := newTestWriter(t, "app.log", WithMaxSize(30), WithMaxBackups(2), WithKeepFileExt(true))

	for i := 1; i <= 3; i++ {
		_, _ = w.Write([]byte(line(i)))
	}
	require.NoError(t, w.Flush())

	dir := filepath.Dir(path)
	assert.Equal(t, []string{"app.1.log", "app.2.log", "app.log"}, dirFiles(t, dir))
	assert.Equal(t, line(1), readFile(t, filepath.Join(dir, "app.2.log")))
}

// TestRollingWriter_AppendsExistingFile 打开已有文件时追加，计数从现有大小开始
func TestRollingWriter_AppendsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exist.log")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o600))

	w, err := New(path, WithMaxSize(1000))
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, int64(13), w.Size())
	_, err = w.Write([]byte("next\n"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, "previous run\nnext\n", readFile(t, path))
}

// =============================================================================
// 轮转期间的写入
// =============================================================================

// TestRollingWriter_WritesDuringRotationQueuedInOrder 轮转期间的写入按序进入新文件
func TestRollingWriter_WritesDuringRotationQueuedInOrder(t *testing.T) {
	w, path, _ := newTestWriter(t, "q.log", WithMaxSize(10), WithMaxBackups(2))

	_, err := w.Write([]byte("0123456789"))
	require.NoError(t, err)

	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	w.mu.Lock()
	w.openFn = func(name string, mode os.FileMode) (*os.File, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
		return openAppend(name, mode)
	}
	w.mu.Unlock()

	_, err = w.Write([]byte("a\n"))
	require.NoError(t, err)
	<-entered
	assert.Equal(t, StateRolling, w.State())

	for _, s := range []string{"b\n", "c\n"} {
		n, err := w.Write([]byte(s))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
	close(gate)

	require.NoError(t, w.Flush())
	assert.Equal(t, StateOpen, w.State())
	assert.Equal(t, "a\nb\nc\n", readFile(t, path))
	assert.Equal(t, "0123456789", readFile(t, path+".1"))
}

// TestRollingWriter_ConcurrentWriters 并发写入：行完整、总数不变
func TestRollingWriter_ConcurrentWriters(t *testing.T) {
	w, path, _ := newTestWriter(t, "c.log", WithMaxSize(260), WithMaxBackups(200))

	const goroutines, perG = 8, 100
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				_, _ = w.Write([]byte(line(g*perG + i)))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	total := 0
	for _, name := range dirFiles(t, filepath.Dir(path)) {
		content := readFile(t, filepath.Join(filepath.Dir(path), name))
		for _, l := range strings.SplitAfter(content, "\n") {
			if l == "" {
				continue
			}
			require.Len(t, l, 26, "line torn in %s", name)
			total++
		}
	}
	assert.Equal(t, goroutines*perG, total)
}

// =============================================================================
// 关闭
// =============================================================================

func TestRollingWriter_WriteAfterCloseNoIO(t *testing.T) {
	w, path, _ := newTestWriter(t, "closed.log")

	_, err := w.Write([]byte("before\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	n, err := w.Write([]byte("after\n"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, n)
	assert.Equal(t, "before\n", readFile(t, path))

	assert.ErrorIs(t, w.Close(), ErrClosed)
	assert.ErrorIs(t, w.Rotate(), ErrClosed)
	assert.ErrorIs(t, w.Reopen(), ErrClosed)
	assert.ErrorIs(t, w.Flush(), ErrClosed)
	assert.Equal(t, StateClosed, w.State())
}

func TestRollingWriter_CloseWaitsForRotation(t *testing.T) {
	w, path, _ := newTestWriter(t, "cw.log", WithMaxSize(5), WithMaxBackups(2))
	_, _ = w.Write([]byte("12345"))

	gate := make(chan struct{})
	w.mu.Lock()
	w.openFn = func(name string, mode os.FileMode) (*os.File, error) {
		<-gate
		return openAppend(name, mode)
	}
	w.mu.Unlock()

	_, _ = w.Write([]byte("queued"))
	time.AfterFunc(20*time.Millisecond, func() { close(gate) })

	require.NoError(t, w.Close())
	assert.Equal(t, "queued", readFile(t, path))
}

func TestRollingWriter_CloseContextPending(t *testing.T) {
	w, _, _ := newTestWriter(t, "cp.log", WithMaxSize(5), WithMaxBackups(2))
	_, _ = w.Write([]byte("12345"))

	gate := make(chan struct{})
	w.mu.Lock()
	w.openFn = func(name string, mode os.FileMode) (*os.File, error) {
		<-gate
		return openAppend(name, mode)
	}
	w.mu.Unlock()
	_, _ = w.Write([]byte("x"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := w.CloseContext(ctx)
	assert.ErrorIs(t, err, ErrClosePending)
	assert.NotEqual(t, StateClosed, w.State())

	close(gate)
	assert.NoError(t, w.Close())
}

// =============================================================================
// 故障
// =============================================================================

func TestRollingWriter_DegradedAfterOpenFailure(t *testing.T) {
	rec := &fakeRecorder{}
	w, path, diag := newTestWriter(t, "d.log",
		WithMaxSize(10), WithMaxBackups(2), WithOpenAttempts(2), WithRecorder(rec))

	_, _ = w.Write([]byte("0123456789"))

	cause := errors.New("disk gone")
	w.mu.Lock()
	w.openFn = failingOpen(cause)
	w.mu.Unlock()

	// 触发轮转，两条写入都在队列中
	_, err := w.Write([]byte("lost-1"))
	require.NoError(t, err)
	_, _ = w.Write([]byte("lost-2"))

	err = w.Flush()
	require.ErrorIs(t, err, ErrDegraded)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StateFailed, w.State())

	_, err = w.Write([]byte("later"))
	assert.ErrorIs(t, err, ErrDegraded)

	assert.Positive(t, diag.Errors())
	assert.LessOrEqual(t, 1, rec.snapshot().lost)

	// 运维介入后 Reopen 恢复
	w.mu.Lock()
	w.openFn = openAppend
	w.mu.Unlock()
	require.NoError(t, w.Reopen())
	assert.Equal(t, StateOpen, w.State())

	_, err = w.Write([]byte("back\n"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, "back\n", readFile(t, path))
	assert.Equal(t, "0123456789", readFile(t, path+".1"))
}

func TestRollingWriter_RotateRecoversFromFailed(t *testing.T) {
	w, _, _ := newTestWriter(t, "r.log", WithMaxSize(4), WithOpenAttempts(1))
	_, _ = w.Write([]byte("1234"))

	w.mu.Lock()
	w.openFn = failingOpen(errors.New("nope"))
	w.mu.Unlock()
	_, _ = w.Write([]byte("5"))
	require.ErrorIs(t, w.Flush(), ErrDegraded)

	assert.ErrorIs(t, w.Rotate(), ErrDegraded)

	w.mu.Lock()
	w.openFn = openAppend
	w.mu.Unlock()
	require.NoError(t, w.Rotate())
	assert.Equal(t, StateOpen, w.State())
}

// =============================================================================
// 手动轮转与重新打开
// =============================================================================

func TestRollingWriter_ManualRotate(t *testing.T) {
	rec := &fakeRecorder{}
	w, path, _ := newTestWriter(t, "m.log", WithMaxBackups(3), WithRecorder(rec))

	_, _ = w.Write([]byte("one\n"))
	require.NoError(t, w.Rotate())
	_, _ = w.Write([]byte("two\n"))
	require.NoError(t, w.Flush())

	assert.Equal(t, "one\n", readFile(t, path+".1"))
	assert.Equal(t, "two\n", readFile(t, path))
	assert.Equal(t, []string{"manual"}, rec.snapshot().rotations)
	assert.Equal(t, 8, rec.snapshot().written)
}

func TestRollingWriter_ReopenAfterExternalMove(t *testing.T) {
	w, path, _ := newTestWriter(t, "ext.log")

	_, _ = w.Write([]byte("old\n"))
	require.NoError(t, w.Flush())
	require.NoError(t, os.Rename(path, path+".moved"))

	require.NoError(t, w.Reopen())
	_, _ = w.Write([]byte("new\n"))
	require.NoError(t, w.Flush())

	assert.Equal(t, "old\n", readFile(t, path+".moved"))
	assert.Equal(t, "new\n", readFile(t, path))
	assert.Equal(t, int64(4), w.Size())
}

// =============================================================================
// 压缩
// =============================================================================

func TestRollingWriter_CompressBackups(t *testing.T) {
	rec := &fakeRecorder{}
	w, path, _ := newTestWriter(t, "gz.log",
		WithMaxSize(30), WithMaxBackups(3), WithCompress(true), WithRecorder(rec))

	for i := 1; i <= 3; i++ {
		_, _ = w.Write([]byte(line(i)))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"gz.log", "gz.log.1.gz", "gz.log.2.gz"}, dirFiles(t, filepath.Dir(path)))
	assert.Equal(t, line(2), readGzip(t, path+".1.gz"))
	assert.Equal(t, line(1), readGzip(t, path+".2.gz"))
	assert.Equal(t, line(3), readFile(t, path))
	assert.Equal(t, 2, rec.snapshot().compressed)
}

func TestRollingWriter_CompressFailureKeepsBackup(t *testing.T) {
	rec := &fakeRecorder{}
	w, path, diag := newTestWriter(t, "gzf.log",
		WithMaxSize(30), WithCompress(true), WithRecorder(rec))
	w.mu.Lock()
	w.compressFn = func(string, os.FileMode) (int64, int64, error) {
		return 0, 0, errors.New("no space")
	}
	w.mu.Unlock()

	_, _ = w.Write([]byte(line(1)))
	_, _ = w.Write([]byte(line(2)))
	require.NoError(t, w.Close())

	assert.Equal(t, line(1), readFile(t, path+".1"))
	assert.Equal(t, 1, rec.snapshot().compressErr)
	assert.Positive(t, diag.Errors())
}

// =============================================================================
// 日期轮转
// =============================================================================

func TestRollingWriter_DateRoll(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC))
	w, path, _ := newTestWriter(t, "d.log",
		WithDatePattern("yyyy-MM-dd"), WithMaxBackups(3), WithClock(clock.Now))

	_, _ = w.Write([]byte("day1\n"))
	clock.Set(time.Date(2024, 3, 10, 0, 1, 0, 0, time.UTC))
	_, _ = w.Write([]byte("day2\n"))
	require.NoError(t, w.Flush())

	assert.Equal(t, "day1\n", readFile(t, path+"-2024-03-09"))
	assert.Equal(t, "day2\n", readFile(t, path))
}

func TestRollingWriter_DateRollEmptyFileSkipsRename(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC))
	w, path, _ := newTestWriter(t, "e.log", WithDatePattern("daily"), WithClock(clock.Now))

	clock.Set(time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC))
	_, _ = w.Write([]byte("first\n"))
	require.NoError(t, w.Flush())

	assert.Equal(t, []string{"e.log"}, dirFiles(t, filepath.Dir(path)))
}

func TestRollingWriter_DateDedupSuffix(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC))
	w, path, _ := newTestWriter(t, "dd.log",
		WithDatePattern("daily"), WithMaxBackups(5), WithClock(clock.Now))

	_, _ = w.Write([]byte("a\n"))
	require.NoError(t, w.Rotate())
	_, _ = w.Write([]byte("b\n"))
	require.NoError(t, w.Rotate())
	require.NoError(t, w.Flush())

	assert.Equal(t, "a\n", readFile(t, path+"-2024-03-09"))
	assert.Equal(t, "b\n", readFile(t, path+"-2024-03-09.1"))
}

func TestRollingWriter_DatePrune(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	w, path, _ := newTestWriter(t, "p.log",
		WithDatePattern("daily"), WithMaxBackups(2), WithClock(clock.Now))

	for day := 1; day <= 5; day++ {
		clock.Set(time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC))
		_, _ = w.Write([]byte("x\n"))
		require.NoError(t, w.Flush())
	}

	assert.Equal(t, []string{"p.log", "p.log-2024-03-03", "p.log-2024-03-04"},
		dirFiles(t, filepath.Dir(path)))
}

func TestRollingWriter_SizeAndDateCombined(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC))
	w, path, _ := newTestWriter(t, "sd.log",
		WithDatePattern("daily"), WithMaxSize(30), WithMaxBackups(5), WithClock(clock.Now))

	_, _ = w.Write([]byte(line(1)))
	_, _ = w.Write([]byte(line(2))) // 大小触发
	require.NoError(t, w.Flush())
	clock.Set(time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC))
	_, _ = w.Write([]byte(line(3))) // 日期触发
	require.NoError(t, w.Flush())

	assert.Equal(t, line(1), readFile(t, path+"-2024-03-09"))
	assert.Equal(t, line(2), readFile(t, path+"-2024-03-09.1"))
	assert.Equal(t, line(3), readFile(t, path))
}

func TestRollingWriter_AlwaysIncludePattern(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC))
	dir := t.TempDir()
	base := filepath.Join(dir, "ai.log")

	w, err := New(base, WithDatePattern("daily"), WithAlwaysIncludePattern(true),
		WithMaxBackups(3), WithClock(clock.Now))
	require.NoError(t, err)
	assert.Equal(t, base+"-2024-03-09", w.Filename())

	_, _ = w.Write([]byte("d1\n"))
	clock.Set(time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC))
	_, _ = w.Write([]byte("d2\n"))
	require.NoError(t, w.Close())

	assert.Equal(t, "d1\n", readFile(t, base+"-2024-03-09"))
	assert.Equal(t, "d2\n", readFile(t, base+"-2024-03-10"))

	// 同一天重启：复用并追加
	w2, err := New(base, WithDatePattern("daily"), WithAlwaysIncludePattern(true),
		WithClock(clock.Now))
	require.NoError(t, err)
	assert.Equal(t, int64(3), w2.Size())
	_, _ = w2.Write([]byte("again\n"))
	require.NoError(t, w2.Close())
	assert.Equal(t, "d2\nagain\n", readFile(t, base+"-2024-03-10"))
}

// =============================================================================
// 配置校验
// =============================================================================

func TestNew_Validation(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "v.log")

	tests := []struct {
		name     string
		filename string
		opts     []Option
		err      error
	}{
		{"空文件名", "", nil, ErrEmptyFilename},
		{"负数大小", file, []Option{WithMaxSize(-1)}, ErrInvalidMaxSize},
		{"备份过多", file, []Option{WithMaxBackups(5000)}, ErrInvalidMaxBackups},
		{"负数备份", file, []Option{WithMaxBackups(-1)}, ErrInvalidMaxBackups},
		{"非法权限位", file, []Option{WithFileMode(os.ModeSetuid | 0o644)}, ErrInvalidFileMode},
		{"非法日期模式", file, []Option{WithDatePattern("nothing")}, ErrInvalidDatePattern},
		{"日期文件名缺少模式", file, []Option{WithAlwaysIncludePattern(true)}, ErrInvalidDatePattern},
		{"目录路径", dir + "/", nil, ErrInvalidPath},
		{"已存在的目录", dir, nil, ErrInvalidPath},
		{"路径穿越", "../escape.log", nil, ErrPathTraversal},
		{"空字节", "a\x00b.log", nil, ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.filename, tt.opts...)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, w)
		})
	}
}

func TestNew_CreatesParentDirAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "app.log")
	w, err := New(path, WithFileMode(0o640))
	require.NoError(t, err)
	defer w.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "rolling", StateRolling.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(9).String())
}

// =============================================================================
// 时区与写入恢复
// =============================================================================

// TestRollingWriter_DateRollNonUTCClock 时钟不在 UTC 时，轮转边界跟随文件名所用的 UTC 日期
func TestRollingWriter_DateRollNonUTCClock(t *testing.T) {
	cst := time.FixedZone("CST", 8*3600)
	clock := newFakeClock(time.Date(2024, 3, 9, 8, 0, 0, 0, cst))
	w, path, _ := newTestWriter(t, "tz.log",
		WithDatePattern("daily"), WithMaxBackups(5), WithClock(clock.Now))

	// 本地 03-09 09:00 与 03-10 00:30 同属 UTC 03-09
	clock.Set(time.Date(2024, 3, 9, 9, 0, 0, 0, cst))
	_, _ = w.Write([]byte("day09\n"))
	clock.Set(time.Date(2024, 3, 10, 0, 30, 0, 0, cst))
	_, _ = w.Write([]byte("day10\n"))
	clock.Set(time.Date(2024, 3, 11, 0, 30, 0, 0, cst))
	_, _ = w.Write([]byte("day11\n"))
	require.NoError(t, w.Flush())

	assert.Equal(t, []string{"tz.log", "tz.log-2024-03-09"}, dirFiles(t, filepath.Dir(path)))
	assert.Equal(t, "day09\nday10\n", readFile(t, path+"-2024-03-09"))
	assert.Equal(t, "day11\n", readFile(t, path))
}

// TestRollingWriter_DateRollLocalTime LocalTime 下按本地午夜轮转，每天的内容落在当天的文件
func TestRollingWriter_DateRollLocalTime(t *testing.T) {
	cst := time.FixedZone("CST", 8*3600)
	saved := time.Local
	time.Local = cst
	t.Cleanup(func() { time.Local = saved })

	clock := newFakeClock(time.Date(2024, 3, 9, 8, 0, 0, 0, cst))
	w, path, _ := newTestWriter(t, "lt.log",
		WithDatePattern("daily"), WithLocalTime(true), WithMaxBackups(5), WithClock(clock.Now))

	clock.Set(time.Date(2024, 3, 9, 9, 0, 0, 0, cst))
	_, _ = w.Write([]byte("day09\n"))
	clock.Set(time.Date(2024, 3, 10, 0, 30, 0, 0, cst))
	_, _ = w.Write([]byte("day10\n"))
	require.NoError(t, w.Flush())
	clock.Set(time.Date(2024, 3, 11, 0, 30, 0, 0, cst))
	_, _ = w.Write([]byte("day11\n"))
	require.NoError(t, w.Flush())

	assert.Equal(t, []string{"lt.log", "lt.log-2024-03-09", "lt.log-2024-03-10"},
		dirFiles(t, filepath.Dir(path)))
	assert.Equal(t, "day09\n", readFile(t, path+"-2024-03-09"))
	assert.Equal(t, "day10\n", readFile(t, path+"-2024-03-10"))
	assert.Equal(t, "day11\n", readFile(t, path))
}

// flakyHandle 前 fails 次写入返回错误，之后正常写文件
type flakyHandle struct {
	*xsink.FileHandle
	fails int
}

func (h *flakyHandle) Write(p []byte) (int, bool, error) {
	if h.fails > 0 {
		h.fails--
		return 0, false, errors.New("disk full")
	}
	return h.FileHandle.Write(p)
}

// TestRollingWriter_RecoversAfterWriteError 写错误恢复后，积压数据与后续写入按序落盘
func TestRollingWriter_RecoversAfterWriteError(t *testing.T) {
	w, path, _ := newTestWriter(t, "err.log")
	w.handleFn = func(f *os.File) xsink.Handle {
		return &flakyHandle{FileHandle: xsink.NewFileHandle(f), fails: 3}
	}
	w.drainRetry = rate.NewLimiter(rate.Inf, 0)
	require.NoError(t, w.Reopen())

	var want strings.Builder
	for i := 1; i <= 10; i++ {
		_, err := w.Write([]byte(line(i)))
		require.NoError(t, err)
		want.WriteString(line(i))
	}

	// 不调用 Flush：恢复必须发生在写入路径上
	assert.Equal(t, want.String(), readFile(t, path))
	w.mu.Lock()
	pending, ready := w.sink.Pending(), w.sink.Ready()
	w.mu.Unlock()
	assert.Zero(t, pending)
	assert.True(t, ready)
	assert.Equal(t, int64(want.Len()), w.Size())
}

// TestRollingWriter_DrainRetryThrottled 节流窗口内不重试，积压保留到下一次窗口
func TestRollingWriter_DrainRetryThrottled(t *testing.T) {
	w, path, _ := newTestWriter(t, "slow.log")
	w.handleFn = func(f *os.File) xsink.Handle {
		return &flakyHandle{FileHandle: xsink.NewFileHandle(f), fails: 2}
	}
	w.drainRetry = rate.NewLimiter(rate.Limit(0), 1)
	require.NoError(t, w.Reopen())

	_, _ = w.Write([]byte("a\n")) // 失败，消耗唯一一次重试并再次失败
	_, _ = w.Write([]byte("b\n")) // 节流：只入队
	assert.Empty(t, readFile(t, path))

	require.NoError(t, w.Flush())
	assert.Equal(t, "a\nb\n", readFile(t, path))
}
