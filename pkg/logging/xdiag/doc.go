// Package xdiag 提供日志组件内部的诊断通道。
//
// 日志组件不能用自己记录自己的故障（会递归），因此所有瞬时 IO 错误、
// 压缩失败、格式化失败都上报到 [Channel]：独立的 slog 文本输出（默认 stderr），
// 令牌桶限流，可选错误回调。
//
// 设计决策: 限流丢弃的条数不会丢失，在下一条放行的消息上以 suppressed 属性报告；
// 错误计数与回调不受限流影响。
package xdiag
