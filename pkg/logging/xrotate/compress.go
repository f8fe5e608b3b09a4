package xrotate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
)

// compressFile 把 src 压缩为 src.gz 并删除 src
//
// 先写入 src.gz.tmp 再改名，中途失败不会留下截断的 .gz；失败时 src 保持原样。
func compressFile(src string, mode os.FileMode) (before, after int64, err error) {
	in, err := os.Open(src) //#nosec G304 -- src 由命名规则生成
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, 0, err
	}
	before = info.Size()

	dst := src + gzExt
	tmp := dst + tmpExt
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode) //#nosec G304 -- 同上
	if err != nil {
		return before, 0, err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(src)
	gz.ModTime = info.ModTime()
	if _, err = io.Copy(gz, in); err != nil {
		_ = gz.Close()
		_ = out.Close()
		return before, 0, fmt.Errorf("gzip %s: %w", src, err)
	}
	if err = errors.Join(gz.Close(), out.Sync()); err != nil {
		_ = out.Close()
		return before, 0, fmt.Errorf("gzip %s: %w", src, err)
	}
	if err = out.Close(); err != nil {
		return before, 0, err
	}

	if st, statErr := os.Stat(tmp); statErr == nil {
		after = st.Size()
	}
	if err = os.Rename(tmp, dst); err != nil {
		return before, 0, err
	}
	if err = os.Remove(src); err != nil {
		// 压缩版本已就位，保留未压缩文件只会多占空间
		return before, after, fmt.Errorf("remove uncompressed backup: %w", err)
	}
	return before, after, nil
}

// compressAsync 在后台压缩备份
//
// 同一写入器同一时刻最多一个压缩任务：下一次轮转平移备份前会等待它完成。
func (w *RollingWriter) compressAsync(src string) {
	w.compressing.Add(1)
	go func() {
		defer w.compressing.Done()
		before, after, err := w.compressFn(src, w.cfg.FileMode)
		w.rec.RecordCompression(context.Background(), src, before, after, err)
		if err != nil {
			w.diag.Error("compress backup failed, keeping uncompressed copy", err, xdiag.Path(src))
		}
	}()
}

// waitCompression 等待后台压缩完成或 ctx 结束
func (w *RollingWriter) waitCompression(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.compressing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: compression still running: %w", ErrClosePending, ctx.Err())
	}
}
