package xrotate

import (
	"cmp"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
	"github.com/omeyang/xlogkit/pkg/logging/xpolicy"
)

// archive 把活动文件移入备份序列，返回新备份路径（失败或无需改名时为空）
//
// 所有重命名/删除失败只上报诊断，不中断后续步骤。
func (w *RollingWriter) archive(live string, lastRoll time.Time, reason xpolicy.Reason) string {
	if !w.names.dated() {
		return w.shiftNumbered(live)
	}

	date := w.names.date(lastRoll)
	start := 0
	if w.names.always {
		if reason == xpolicy.ReasonDate {
			// 文件名已带日期，无需改名，直接成为备份
			return live
		}
		start = 1
	}
	for k := start; ; k++ {
		dst := w.names.datedName(date, k)
		if dst == live || exists(dst) || exists(dst+gzExt) {
			continue
		}
		if err := os.Rename(live, dst); err != nil {
			w.diag.Error("rename log file failed", err, xdiag.Path(live), slog.String("to", dst))
			return ""
		}
		return dst
	}
}

// shiftNumbered 从最高编号开始平移：N → N+1，编号 >= MaxBackups 的删除，最后 live → .1
func (w *RollingWriter) shiftNumbered(live string) string {
	found, err := w.names.list(live)
	if err != nil {
		w.diag.Error("list backups failed", err, xdiag.Path(w.names.dir))
	}
	slices.SortFunc(found, func(a, b backup) int {
		return cmp.Or(cmp.Compare(b.index, a.index), strings.Compare(b.path, a.path))
	})

	for _, b := range found {
		if b.index >= w.cfg.MaxBackups {
			w.remove(b.path)
			continue
		}
		dst := w.names.numbered(b.index + 1)
		if b.compressed() {
			dst += gzExt
		}
		w.remove(dst)
		if err := os.Rename(b.path, dst); err != nil {
			w.diag.Error("shift backup failed", err, xdiag.Path(b.path), slog.String("to", dst))
		}
	}

	dst := w.names.numbered(1)
	w.remove(dst)
	w.remove(dst + gzExt)
	if err := os.Rename(live, dst); err != nil {
		w.diag.Error("rename log file failed", err, xdiag.Path(live), slog.String("to", dst))
		return ""
	}
	return dst
}

// pruneDated 日期模式下只保留最新的 MaxBackups 个备份
func (w *RollingWriter) pruneDated(live string) {
	if !w.names.dated() {
		return
	}
	found, err := w.names.list(live)
	if err != nil {
		w.diag.Error("list backups failed", err, xdiag.Path(w.names.dir))
		return
	}
	// 同一备份的压缩与未压缩版本视为一个
	groups := make(map[string][]backup, len(found))
	var order []backup
	for _, b := range found {
		key := strings.TrimSuffix(b.path, gzExt)
		if _, ok := groups[key]; !ok {
			order = append(order, b)
		}
		groups[key] = append(groups[key], b)
	}
	slices.SortFunc(order, func(a, b backup) int {
		return cmp.Or(b.date.Compare(a.date), cmp.Compare(b.index, a.index))
	})
	if len(order) <= w.cfg.MaxBackups {
		return
	}
	for _, b := range order[w.cfg.MaxBackups:] {
		for _, f := range groups[strings.TrimSuffix(b.path, gzExt)] {
			w.remove(f.path)
		}
	}
}

// remove 删除文件，不存在不算错误
func (w *RollingWriter) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.diag.Error("remove backup failed", err, xdiag.Path(path))
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
