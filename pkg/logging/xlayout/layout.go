package xlayout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/omeyang/xlogkit/pkg/logging/xevent"
)

// Layout 将事件渲染为一行文本（不含行终止符）
//
// Layout 应为纯函数。panic 由 [Render] 隔离为 [*FormattingError]。
type Layout func(xevent.Event) string

// 内置布局名称
const (
	NameBasic       = "basic"
	NameJSON        = "json"
	NameMessagePass = "messagePassThrough"
)

// TimeFormat Basic 布局使用的时间格式
const TimeFormat = "2006-01-02T15:04:05.000"

// ErrUnknownLayout 未知布局名称
var ErrUnknownLayout = errors.New("xlayout: unknown layout")

// FormattingError 布局函数 panic 或失败
type FormattingError struct {
	Category string
	Cause    any
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("xlayout: format event of category %q: %v", e.Category, e.Cause)
}

// Unwrap 当 Cause 为 error 时返回它
func (e *FormattingError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// ByName 按名称查找内置布局，空名称返回 Basic
func ByName(name string) (Layout, error) {
	switch strings.ToLower(name) {
	case "", NameBasic:
		return Basic, nil
	case strings.ToLower(NameJSON):
		return JSON, nil
	case strings.ToLower(NameMessagePass), "messagepass", "passthrough":
		return MessagePass, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
}

// Render 调用布局函数，隔离 panic
func Render(layout Layout, e xevent.Event) (line string, err error) {
	if layout == nil {
		layout = Basic
	}
	defer func() {
		if r := recover(); r != nil {
			line, err = "", &FormattingError{Category: e.Category(), Cause: r}
		}
	}()
	return layout(e), nil
}

// Basic 格式：[时间] [级别] 分类 - 消息
//
//	[2024-03-09T10:00:00.000] [INFO] app.db - connected host=db1
func Basic(e xevent.Event) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(e.Time().Format(TimeFormat))
	b.WriteString("] [")
	b.WriteString(e.Level().String())
	b.WriteString("] ")
	b.WriteString(e.Category())
	b.WriteString(" - ")
	b.WriteString(FormatMessage(e))
	e.RangeContext(func(k string, v any) bool {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(stringify(v))
		return true
	})
	return b.String()
}

// MessagePass 只输出消息本身
func MessagePass(e xevent.Event) string {
	return FormatMessage(e)
}

type jsonLine struct {
	Time     string         `json:"time"`
	Level    string         `json:"level"`
	Category string         `json:"category"`
	Message  string         `json:"msg"`
	Context  map[string]any `json:"context,omitempty"`
	File     string         `json:"file,omitempty"`
	Line     int            `json:"line,omitempty"`
	Function string         `json:"func,omitempty"`
}

// JSON 单行 JSON 布局
//
// 上下文值无法编码时退化为其字符串表示。
func JSON(e xevent.Event) string {
	out := jsonLine{
		Time:     e.Time().Format(time.RFC3339Nano),
		Level:    e.Level().String(),
		Category: e.Category(),
		Message:  FormatMessage(e),
		Context:  e.Context(),
	}
	if cs, ok := e.CallSite(); ok {
		out.File, out.Line, out.Function = cs.File, cs.Line, cs.Function
	}
	data, err := json.Marshal(out)
	if err != nil {
		for k, v := range out.Context {
			out.Context[k] = stringify(v)
		}
		data, err = json.Marshal(out)
		if err != nil {
			panic(err)
		}
	}
	return string(data)
}

// FormatMessage 拼接消息片段
//
// 首个片段为含 % 的字符串时按 fmt 格式化其余片段，多出的片段以空格追加；
// 否则各片段以空格连接。
func FormatMessage(e xevent.Event) string {
	parts := e.Message()
	if len(parts) == 0 {
		return ""
	}
	if f, ok := parts[0].(string); ok && len(parts) > 1 && strings.Contains(f, "%") {
		n := countVerbs(f)
		if n > len(parts)-1 {
			n = len(parts) - 1
		}
		head := fmt.Sprintf(f, parts[1:1+n]...)
		if rest := parts[1+n:]; len(rest) > 0 {
			return head + " " + join(rest)
		}
		return head
	}
	return join(parts)
}

func join(parts []any) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(stringify(p))
	}
	return b.String()
}

// countVerbs 统计格式串中消耗参数的动词数量（%% 不计）
func countVerbs(f string) int {
	n := 0
	for i := 0; i < len(f); i++ {
		if f[i] != '%' {
			continue
		}
		if i+1 < len(f) && f[i+1] == '%' {
			i++
			continue
		}
		n++
	}
	return n
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%+v", x)
	}
}
