// Package observability 提供日志门面与指标子包。
//
// 子包列表：
//   - xlog: 按分类路由的结构化日志门面，基于 log/slog 扩展
//   - xmetrics: 日志写入器的指标记录（OpenTelemetry）
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 自动从 context 中提取追踪信息注入日志
//   - 支持运行时动态级别控制
package observability
