package xpolicy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyPattern 日期模式为空
	ErrEmptyPattern = errors.New("xpolicy: empty date pattern")

	// ErrNoTimeComponent 日期模式不包含任何时间字段
	ErrNoTimeComponent = errors.New("xpolicy: date pattern has no time component")

	// ErrUnsafePattern 日期模式会产生路径分隔符
	ErrUnsafePattern = errors.New("xpolicy: date pattern contains path separator")
)

// 常用别名
var patternAliases = map[string]string{
	"daily":    "2006-01-02",
	"hourly":   "2006-01-02-15",
	"minutely": "2006-01-02-15-04",
}

// 按长度降序排列，保证最长匹配
var patternTokens = []struct {
	token  string
	layout string
}{
	{"yyyy", "2006"},
	{"SSS", "000"},
	{"yy", "06"},
	{"MM", "01"},
	{"dd", "02"},
	{"hh", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// 用于检测模式是否包含时间字段
var referenceTime = time.Date(2001, 2, 3, 4, 5, 6, 7000000, time.UTC)

// DatePattern 日期轮转粒度
//
// 零值表示未配置。
type DatePattern struct {
	raw    string
	layout string
}

// ParseDatePattern 解析日期模式
//
// 支持三种写法：
//   - 别名：daily、hourly、minutely
//   - 令牌：yyyy yy MM dd hh mm ss SSS，其余字符原样保留（如 "yyyy-MM-dd"）
//   - Go 时间布局（如 "2006-01-02"）
//
// 首尾的 "." 会被去掉，"yyyy-MM-dd" 与 ".yyyy-MM-dd" 等价。
func ParseDatePattern(s string) (DatePattern, error) {
	raw := s
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return DatePattern{}, ErrEmptyPattern
	}

	layout, ok := patternAliases[strings.ToLower(s)]
	if !ok {
		layout = translateTokens(s)
	}
	if strings.ContainsAny(layout, `/\`) {
		return DatePattern{}, fmt.Errorf("%w: %q", ErrUnsafePattern, raw)
	}
	if referenceTime.Format(layout) == layout {
		return DatePattern{}, fmt.Errorf("%w: %q", ErrNoTimeComponent, raw)
	}
	return DatePattern{raw: raw, layout: layout}, nil
}

// MustParseDatePattern 同 ParseDatePattern，出错时 panic
//
// 仅用于包级变量和测试。
func MustParseDatePattern(s string) DatePattern {
	p, err := ParseDatePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// translateTokens 将令牌写法转换为 Go 布局；不含令牌时原样返回
func translateTokens(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); {
		matched := false
		for _, t := range patternTokens {
			if strings.HasPrefix(s[i:], t.token) {
				b.WriteString(t.layout)
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// Format 按模式格式化时间
func (p DatePattern) Format(t time.Time) string {
	if p.layout == "" {
		return ""
	}
	return t.Format(p.layout)
}

// Layout 返回 Go 时间布局
func (p DatePattern) Layout() string { return p.layout }

// String 返回原始配置值
func (p DatePattern) String() string { return p.raw }

// IsZero 报告模式是否未配置
func (p DatePattern) IsZero() bool { return p.layout == "" }
