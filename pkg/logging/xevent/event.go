package xevent

import (
	"maps"
	"slices"
	"time"
)

// CallSite 事件的调用位置
type CallSite struct {
	File     string
	Line     int
	Function string
}

// Event 一条日志事件
//
// 构造后不可变：NewEvent 拷贝传入的切片和 map，访问器返回副本。
// Event 按值传递，由处理它的输出端管线独占。
type Event struct {
	time     time.Time
	category string
	level    Level
	message  []any
	context  map[string]any
	callSite *CallSite
}

// Option Event 构造选项
type Option func(*Event)

// WithContext 设置上下文键值
func WithContext(kv map[string]any) Option {
	return func(e *Event) {
		if len(kv) > 0 {
			e.context = maps.Clone(kv)
		}
	}
}

// WithCallSite 设置调用位置
func WithCallSite(cs CallSite) Option {
	return func(e *Event) {
		e.callSite = &cs
	}
}

// WithTime 覆盖事件时间（默认 time.Now）
func WithTime(t time.Time) Option {
	return func(e *Event) {
		e.time = t
	}
}

// NewEvent 创建日志事件
func NewEvent(category string, level Level, message []any, opts ...Option) Event {
	e := Event{
		time:     time.Now(),
		category: category,
		level:    level,
		message:  slices.Clone(message),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&e)
		}
	}
	return e
}

// Time 事件时间
func (e Event) Time() time.Time { return e.time }

// Category 分类名
func (e Event) Category() string { return e.category }

// Level 级别
func (e Event) Level() Level { return e.level }

// Message 返回消息片段的副本
func (e Event) Message() []any { return slices.Clone(e.message) }

// Context 返回上下文键值的副本（可能为 nil）
func (e Event) Context() map[string]any { return maps.Clone(e.context) }

// Value 读取单个上下文值
func (e Event) Value(key string) (any, bool) {
	v, ok := e.context[key]
	return v, ok
}

// CallSite 调用位置，未记录时 ok 为 false
func (e Event) CallSite() (CallSite, bool) {
	if e.callSite == nil {
		return CallSite{}, false
	}
	return *e.callSite, true
}

// RangeMessage 按顺序遍历消息片段，避免复制
func (e Event) RangeMessage(fn func(i int, v any) bool) {
	for i, v := range e.message {
		if !fn(i, v) {
			return
		}
	}
}

// RangeContext 按 key 字典序遍历上下文，输出稳定
func (e Event) RangeContext(fn func(k string, v any) bool) {
	for _, k := range slices.Sorted(maps.Keys(e.context)) {
		if !fn(k, e.context[k]) {
			return
		}
	}
}
