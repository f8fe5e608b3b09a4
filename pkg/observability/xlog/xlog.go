// xlog.go 定义核心接口：Logger、Leveler、LoggerWithLevel
//
// 设计理念：
//   - 强制 context 传递，上下文字段由 ContextExtractor 注入
//   - 分类层级：a.b.c 未配置时继承最近的已配置祖先，最终回落到 default
//   - 动态级别控制，按分类运行时调整
//   - 事件经 xevent.Event 分发到分类绑定的所有输出端
//   - 类型安全，方法签名只接受 slog.Attr
package xlog

import (
	"context"
	"log/slog"
)

// Logger 日志接口
//
// 所有方法都需要 context.Context 参数，确保上下文字段正确传播。
// 方法签名只接受 slog.Attr，保证类型安全，避免隐式 key-value 转换开销。
type Logger interface {
	// Debug 记录 Debug 级别日志
	Debug(ctx context.Context, msg string, attrs ...slog.Attr)

	// Info 记录 Info 级别日志
	Info(ctx context.Context, msg string, attrs ...slog.Attr)

	// Warn 记录 Warn 级别日志
	Warn(ctx context.Context, msg string, attrs ...slog.Attr)

	// Error 记录 Error 级别日志
	Error(ctx context.Context, msg string, attrs ...slog.Attr)

	// Stack 记录带完整堆栈的错误日志
	Stack(ctx context.Context, msg string, attrs ...slog.Attr)

	// Log 以任意级别记录（TRACE、FATAL 等）
	//
	// FATAL 只是级别，不会终止进程。
	Log(ctx context.Context, level Level, msg string, attrs ...slog.Attr)

	// With 返回带额外属性的派生 Logger，分类不变
	With(attrs ...slog.Attr) Logger

	// WithGroup 返回带分组的派生 Logger
	// 后续 With 添加的属性键以 "group." 为前缀
	WithGroup(name string) Logger

	// Category 所属分类
	Category() string
}

// Leveler 级别控制接口
//
// 与 Logger 分离，避免污染核心日志接口。
type Leveler interface {
	// SetLevel 设置本分类（及未单独设置级别的子分类）的级别
	SetLevel(level Level)

	// GetLevel 获取本分类当前生效的级别
	GetLevel() Level

	// Enabled 检查指定级别是否启用
	Enabled(ctx context.Context, level Level) bool
}

// LoggerWithLevel 组合接口：Logger + Leveler
type LoggerWithLevel interface {
	Logger
	Leveler
}
