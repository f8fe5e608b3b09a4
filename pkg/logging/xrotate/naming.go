package xrotate

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/omeyang/xlogkit/pkg/logging/xpolicy"
)

const (
	gzExt  = ".gz"
	tmpExt = ".tmp"
)

// naming 活动文件与备份文件的命名规则
//
//	数字模式: app.log.1 .. app.log.N（KeepFileExt: app.1.log）
//	日期模式: app.log-2024-03-09[.k]（KeepFileExt: app-2024-03-09[.k].log）
//
// 压缩后的备份在末尾追加 .gz。
type naming struct {
	path    string
	dir     string
	base    string
	stem    string
	ext     string
	keepExt bool
	pattern xpolicy.DatePattern
	always  bool
	local   bool
}

func newNaming(path string, cfg *Config, pattern xpolicy.DatePattern) naming {
	n := naming{
		path:    path,
		dir:     filepath.Dir(path),
		base:    filepath.Base(path),
		keepExt: cfg.KeepFileExt,
		pattern: pattern,
		always:  cfg.AlwaysIncludePattern,
		local:   cfg.LocalTime,
	}
	n.ext = filepath.Ext(n.base)
	n.stem = strings.TrimSuffix(n.base, n.ext)
	if !n.keepExt || n.stem == "" {
		n.keepExt = false
		n.stem, n.ext = n.base, ""
	}
	return n
}

func (n naming) dated() bool { return !n.pattern.IsZero() }

func (n naming) loc() *time.Location {
	if n.local {
		return time.Local
	}
	return time.UTC
}

// date 按模式格式化 t
func (n naming) date(t time.Time) string {
	return n.pattern.Format(t.In(n.loc()))
}

// live 活动文件路径
func (n naming) live(t time.Time) string {
	if n.always {
		return n.datedName(n.date(t), 0)
	}
	return n.path
}

// numbered 数字模式第 i 个备份
func (n naming) numbered(i int) string {
	return filepath.Join(n.dir, n.stem+"."+strconv.Itoa(i)+n.ext)
}

// datedName 日期模式文件名，k > 0 时追加去重后缀
func (n naming) datedName(date string, k int) string {
	name := n.stem + "-" + date
	if k > 0 {
		name += "." + strconv.Itoa(k)
	}
	return filepath.Join(n.dir, name+n.ext)
}

// backup 磁盘上的一个备份文件
type backup struct {
	path  string
	index int
	date  time.Time
}

// compressed 报告备份是否已压缩
func (b backup) compressed() bool {
	return strings.HasSuffix(b.path, gzExt)
}

// trimExt 去掉 .gz 与 KeepFileExt 扩展名，返回中间部分
func (n naming) trimExt(name, sep string) (string, bool) {
	name = strings.TrimSuffix(name, gzExt)
	if !strings.HasPrefix(name, n.stem+sep) || !strings.HasSuffix(name, n.ext) {
		return "", false
	}
	mid := strings.TrimSuffix(strings.TrimPrefix(name, n.stem+sep), n.ext)
	return mid, mid != ""
}

// parseNumbered 解析数字模式文件名
func (n naming) parseNumbered(name string) (int, bool) {
	mid, ok := n.trimExt(name, ".")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(mid)
	if err != nil || i <= 0 || strconv.Itoa(i) != mid {
		return 0, false
	}
	return i, true
}

// parseDated 解析日期模式文件名，返回日期与去重序号
func (n naming) parseDated(name string) (time.Time, int, bool) {
	mid, ok := n.trimExt(name, "-")
	if !ok {
		return time.Time{}, 0, false
	}
	if t, err := time.ParseInLocation(n.pattern.Layout(), mid, n.loc()); err == nil {
		return t, 0, true
	}
	dot := strings.LastIndexByte(mid, '.')
	if dot <= 0 {
		return time.Time{}, 0, false
	}
	k, err := strconv.Atoi(mid[dot+1:])
	if err != nil || k <= 0 {
		return time.Time{}, 0, false
	}
	t, err := time.ParseInLocation(n.pattern.Layout(), mid[:dot], n.loc())
	if err != nil {
		return time.Time{}, 0, false
	}
	return t, k, true
}

// list 枚举目录中的备份，exclude 为当前活动文件
func (n naming) list(exclude string) ([]backup, error) {
	entries, err := os.ReadDir(n.dir)
	if err != nil {
		return nil, err
	}
	var out []backup
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tmpExt) {
			continue
		}
		full := filepath.Join(n.dir, e.Name())
		if full == exclude || full == n.path {
			continue
		}
		if n.dated() {
			t, k, ok := n.parseDated(e.Name())
			if !ok {
				continue
			}
			out = append(out, backup{path: full, index: n.rank(k), date: t})
			continue
		}
		if i, ok := n.parseNumbered(e.Name()); ok {
			out = append(out, backup{path: full, index: i})
		}
	}
	return out, nil
}

// rank 同一日期内的新旧顺序：数值越大越新
//
// AlwaysIncludePattern 下不带序号的文件是当天最后的活动文件，最新；
// 否则不带序号的是当天第一个备份，最旧。
func (n naming) rank(k int) int {
	if n.always && k == 0 {
		return math.MaxInt
	}
	return k
}
