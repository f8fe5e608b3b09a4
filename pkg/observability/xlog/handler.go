package xlog

import (
	"context"
	"log/slog"
	"runtime"
	"slices"

	"github.com/omeyang/xlogkit/pkg/logging/xevent"
)

type kv struct {
	key   string
	value any
}

// Handler slog.Handler 实现：把 slog.Record 转换为 xevent.Event 并分发到分类的输出端
//
// 属性展平为事件上下文：分组以 "group.key" 形式出现在键中。
type Handler struct {
	f        *Facility
	category string
	attrs    []kv
	groups   []string
}

var _ slog.Handler = (*Handler)(nil)

// Enabled 按分类生效级别判断
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.f.enabled(h.category, Level(level))
}

// Handle 构造事件并分发
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
	if h.f.extract != nil && ctx != nil {
		for _, a := range h.f.extract(ctx) {
			h.f.flatten(fields, nil, a)
		}
	}
	for _, p := range h.attrs {
		fields[p.key] = p.value
	}
	r.Attrs(func(a slog.Attr) bool {
		h.f.flatten(fields, h.groups, a)
		return true
	})

	opts := []xevent.Option{xevent.WithTime(r.Time), xevent.WithContext(fields)}
	if r.PC != 0 && h.f.wantSource(h.category) {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		opts = append(opts, xevent.WithCallSite(xevent.CallSite{
			File:     frame.File,
			Line:     frame.Line,
			Function: frame.Function,
		}))
	}
	e := xevent.NewEvent(h.category, Level(r.Level), []any{r.Message}, opts...)
	return h.f.dispatch(h.category, e)
}

// WithAttrs 返回带预置属性的 Handler
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	fields := make(map[string]any, len(attrs))
	for _, a := range attrs {
		h.f.flatten(fields, h.groups, a)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	next := h.clone()
	for _, k := range keys {
		next.attrs = append(next.attrs, kv{key: k, value: fields[k]})
	}
	return next
}

// WithGroup 返回带分组的 Handler
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.groups = append(next.groups, name)
	return next
}

func (h *Handler) clone() *Handler {
	return &Handler{
		f:        h.f,
		category: h.category,
		attrs:    slices.Clip(h.attrs),
		groups:   slices.Clip(h.groups),
	}
}

// flatten 解析属性并写入 fields，分组展开为带前缀的键
func (f *Facility) flatten(fields map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() != slog.KindGroup && f.replaceAttr != nil {
		a = f.replaceAttr(groups, a)
		a.Value = a.Value.Resolve()
	}
	if a.Key == "" && a.Value.Kind() != slog.KindGroup {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(slices.Clip(groups), a.Key)
		}
		for _, ga := range a.Value.Group() {
			f.flatten(fields, sub, ga)
		}
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = joinKey(groups, a.Key)
	}
	fields[key] = a.Value.Any()
}

func joinKey(groups []string, key string) string {
	n := len(key)
	for _, g := range groups {
		n += len(g) + 1
	}
	b := make([]byte, 0, n)
	for _, g := range groups {
		b = append(b, g...)
		b = append(b, '.')
	}
	return string(append(b, key...))
}
