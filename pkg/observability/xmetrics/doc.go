// Package xmetrics 提供日志写入器的指标记录。
//
// # 设计理念
//
// 写入器只依赖最小化的 [Recorder] 接口，默认 [NoopRecorder]；
// [NewOTelRecorder] 基于 OpenTelemetry metric API 实现，兼容主流可观测栈。
//
// # 指标命名
//
//   - xlogkit.write.bytes
//   - xlogkit.rotation.total / xlogkit.rotation.duration
//   - xlogkit.compression.total / xlogkit.compression.ratio
//   - xlogkit.lost.total
//
// 统一属性：file（默认取文件名）/ reason / status。
package xmetrics
